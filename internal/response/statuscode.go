package response

type StatusCode int

const (
	StatusOK                  StatusCode = 200
	StatusCreated             StatusCode = 201
	StatusSeeOther            StatusCode = 303
	StatusBadRequest          StatusCode = 400
	StatusNotFound            StatusCode = 404
	StatusMethodNotAllowed    StatusCode = 405
	StatusInternalServerError StatusCode = 500
	StatusNotImplemented      StatusCode = 501
)

var reasonPhrases = map[StatusCode]string{
	StatusOK:                  "OK",
	StatusCreated:             "Created",
	StatusSeeOther:            "See Other",
	StatusBadRequest:          "Bad Request",
	StatusNotFound:            "Not Found",
	StatusMethodNotAllowed:    "Method Not Allowed",
	StatusInternalServerError: "Internal Server Error",
	StatusNotImplemented:      "Not Implemented",
}

// Reason returns the reason phrase for a status code, or "" if unknown.
func (s StatusCode) Reason() string {
	return reasonPhrases[s]
}
