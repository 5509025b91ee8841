package templating

// repeat returns a slice of integers from 0 to count-1.
func repeat(count any) []int {
	n := toInt(count)
	if n < 0 {
		return []int{}
	}
	s := make([]int, n)
	for i := 0; i < n; i++ {
		s[i] = i
	}
	return s
}

// defaultValue returns val when it is set and fallback otherwise.
func defaultValue(val, fallback any) any {
	if isSet(val) {
		return val
	}
	return fallback
}

// helperFuncs is the helper library shared by every engine. Each helper
// takes one or two arguments; engines adapt the call convention.
func helperFuncs() map[string]any {
	return map[string]any{
		// Arithmetic (from funcs_simple.go)
		"add":  add,
		"sub":  sub,
		"div":  div,
		"mult": mult,
		"max":  maxOf,
		"min":  minOf,
		"mod":  mod,
		"inc":  inc,
		"dec":  dec,

		// Logic (from funcs_simple.go)
		"and":   and,
		"or":    or,
		"not":   not,
		"isSet": isSet,

		// Control
		"repeat":  repeat,
		"default": defaultValue,
	}
}
