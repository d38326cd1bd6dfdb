package httpserver

import "net/http"

// Envelope is the response shape every domain endpoint returns (§6):
// `{_status: "OK"|"Error", msg, item?, list?, id?, meta?}`. HTTP status codes
// carry the coarse error class; the envelope carries the detail.
type Envelope struct {
	Status string `json:"_status"`
	Msg    string `json:"msg,omitempty"`
	Item   any    `json:"item,omitempty"`
	List   any    `json:"list,omitempty"`
	ID     string `json:"id,omitempty"`
	Meta   any    `json:"meta,omitempty"`
}

// RespondItem writes a 200 envelope carrying a single item.
func RespondItem(w http.ResponseWriter, item any) {
	Respond(w, http.StatusOK, Envelope{Status: "OK", Item: item})
}

// RespondList writes a 200 envelope carrying a list, with optional pagination meta.
func RespondList(w http.ResponseWriter, list any, meta any) {
	Respond(w, http.StatusOK, Envelope{Status: "OK", List: list, Meta: meta})
}

// RespondCreated writes a 200 envelope carrying an item and its id.
func RespondCreated(w http.ResponseWriter, id string, item any) {
	Respond(w, http.StatusOK, Envelope{Status: "OK", ID: id, Item: item})
}

// RespondEnvelopeError writes an error envelope at the given HTTP status.
func RespondEnvelopeError(w http.ResponseWriter, status int, msg string) {
	Respond(w, status, Envelope{Status: "Error", Msg: msg})
}
