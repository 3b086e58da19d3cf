package router

import (
	"bytes"
	"encoding/json"

	"github.com/Amogh-2404/Tez/core/http"
)

// RegisterBuiltins installs the health, echo and data endpoints.
func RegisterBuiltins(r *Router) {
	r.Handle("GET", "/health", health)
	r.Restrict("/health")

	r.Handle("POST", "/echo", echo)
	r.Handle("PUT", "/echo", echo)

	r.Handle("GET", "/api/data", listData)
	r.Handle("POST", "/api/data", createData)
	r.Handle("PUT", "/api/data", updateData)
	r.Handle("DELETE", "/api/data", deleteData)
	r.Restrict("/api/data")
}

var (
	healthBody  = []byte("{\"status\":\"ok\"}\n")
	dataBody    = []byte("{\"data\":[\"item1\",\"item2\",\"item3\"]}\n")
	deletedBody = []byte("{\"message\":\"Resource deleted\"}\n")
)

func health(string, []byte) http.Response {
	return http.NewResponse(http.StatusOK, http.ContentTypeJSON, healthBody)
}

type echoReply struct {
	BodyLength   int    `json:"body_length"`
	Method       string `json:"method"`
	ReceivedBody string `json:"received_body"`
}

func echo(method string, body []byte) http.Response {
	return jsonResponse(http.StatusOK, echoReply{
		BodyLength:   len(body),
		Method:       method,
		ReceivedBody: string(body),
	})
}

type dataReply struct {
	Message  string `json:"message"`
	Received string `json:"received"`
}

func listData(string, []byte) http.Response {
	return http.NewResponse(http.StatusOK, http.ContentTypeJSON, dataBody)
}

func createData(_ string, body []byte) http.Response {
	return jsonResponse(http.StatusCreated, dataReply{Message: "Resource created", Received: string(body)})
}

func updateData(_ string, body []byte) http.Response {
	return jsonResponse(http.StatusOK, dataReply{Message: "Resource updated", Received: string(body)})
}

func deleteData(string, []byte) http.Response {
	return http.NewResponse(http.StatusOK, http.ContentTypeJSON, deletedBody)
}

// jsonResponse encodes v with two-space indentation and a trailing newline.
func jsonResponse(code int, v any) http.Response {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return http.ErrorResponse(http.ErrInternal)
	}
	return http.NewResponse(code, http.ContentTypeJSON, buf.Bytes())
}
