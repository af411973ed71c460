package dao

// Parameter is a named list filter, e.g. NewParameter("State", "idle").
type Parameter struct {
	Name  string
	Value interface{}
}

func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}

// Lookup returns the first parameter with the given name.
func Lookup(name string, parameters []*Parameter) *Parameter {
	for _, p := range parameters {
		if p != nil && p.Name == name {
			return p
		}
	}
	return nil
}

// Matches reports whether value satisfies the named parameter. A missing
// parameter matches everything.
func Matches(name, value string, parameters []*Parameter) bool {
	p := Lookup(name, parameters)
	if p == nil {
		return true
	}
	switch actual := p.Value.(type) {
	case string:
		return value == actual
	case []string:
		for _, s := range actual {
			if value == s {
				return true
			}
		}
		return false
	}
	return true
}
