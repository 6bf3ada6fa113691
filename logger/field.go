package logger

import (
	"fmt"
	"strconv"
)

// Field is a key/value pair printed after a log message.
type Field interface {
	Key() string
	String() string
}

type Fields []Field

type stringField struct{ key, value string }

func (f stringField) Key() string    { return f.key }
func (f stringField) String() string { return f.value }

func StringField(key, value string) Field {
	return stringField{key: key, value: value}
}

func IntField(key string, value int) Field {
	return stringField{key: key, value: strconv.Itoa(value)}
}

// StringerField defers formatting to value, e.g. a process.ExitStatus.
func StringerField(key string, value fmt.Stringer) Field {
	return stringerField{key: key, value: value}
}

type stringerField struct {
	key   string
	value fmt.Stringer
}

func (f stringerField) Key() string    { return f.key }
func (f stringerField) String() string { return f.value.String() }

func ErrorField(err error) Field {
	return stringField{key: "error", value: fmt.Sprint(err)}
}
