package match

import "regexp"

// pool interns the string and regex constants a compiled Program
// references by index, so the bytecode stream carries small integers
// instead of repeating string bytes (grounded on
// original_source/include/clarisma/data/Deduplicator.h, which interns
// strings once at compile time rather than per match).
type pool struct {
	strings []string
	strIdx  map[string]int

	regexes []*regexp.Regexp
	reIdx   map[string]int
}

func newPool() *pool {
	return &pool{
		strIdx: make(map[string]int),
		reIdx:  make(map[string]int),
	}
}

func (p *pool) internString(s string) int {
	if i, ok := p.strIdx[s]; ok {
		return i
	}
	i := len(p.strings)
	p.strings = append(p.strings, s)
	p.strIdx[s] = i
	return i
}

func (p *pool) internRegex(pattern string) (int, error) {
	if i, ok := p.reIdx[pattern]; ok {
		return i, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, err
	}
	i := len(p.regexes)
	p.regexes = append(p.regexes, re)
	p.reIdx[pattern] = i
	return i, nil
}

func (p *pool) str(i int) string          { return p.strings[i] }
func (p *pool) regex(i int) *regexp.Regexp { return p.regexes[i] }
