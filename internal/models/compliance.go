package models

// Condition is the evaluator verdict for one regulatory condition:
// {"result": bool, ...condition specific fields}.
type Condition map[string]interface{}

// Result returns the condition's boolean result and whether it is known.
func (c Condition) Result() (bool, bool) {
	v, ok := c["result"].(bool)
	return v, ok
}

// Evaluation maps condition names to their verdict.
type Evaluation map[string]Condition

// Clone returns a deep copy of the evaluation map (one level into conditions).
func (e Evaluation) Clone() Evaluation {
	out := make(Evaluation, len(e))
	for name, cond := range e {
		c := make(Condition, len(cond))
		for k, v := range cond {
			c[k] = v
		}
		out[name] = c
	}
	return out
}

// Merge copies every field of other into e, condition by condition.
// Conditions and fields absent from other keep their current value.
func (e Evaluation) Merge(other Evaluation) {
	for name, cond := range other {
		dst, ok := e[name]
		if !ok || dst == nil {
			dst = make(Condition, len(cond))
			e[name] = dst
		}
		for k, v := range cond {
			dst[k] = v
		}
	}
}

// Adequate returns true when every known condition result is true.
func (e Evaluation) Adequate() bool {
	for _, cond := range e {
		if ok, known := cond.Result(); known && !ok {
			return false
		}
	}
	return true
}

// Unfulfilled returns the names of conditions whose result is false.
func (e Evaluation) Unfulfilled() []string {
	var names []string
	for name, cond := range e {
		if ok, known := cond.Result(); known && !ok {
			names = append(names, name)
		}
	}
	return names
}
