package logging

import "log/slog"

// Field names shared across components.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldError     = "error"
	FieldEventID   = "event_id"
	FieldCount     = "count"
	FieldBackend   = "backend"
	FieldSubject   = "subject"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func Component(name string) slog.Attr {
	return slog.String(FieldComponent, name)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Error returns an error attribute; a nil error renders as "".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}

func Backend(name string) slog.Attr {
	return slog.String(FieldBackend, name)
}

func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}
