package rules

import (
	"regexp"
	"sync"
)

var (
	reCacheMu sync.Mutex
	reCache   = map[string]*regexp.Regexp{}
)

// compileCache memoizes regexp.Compile for OS-version rule patterns,
// which are evaluated repeatedly across library and argument rule
// lists for the same handful of patterns.
func compileCache(pattern string) (*regexp.Regexp, error) {
	reCacheMu.Lock()
	defer reCacheMu.Unlock()

	if re, ok := reCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	reCache[pattern] = re
	return re, nil
}
