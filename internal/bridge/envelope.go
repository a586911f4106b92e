package bridge

import "github.com/bytedance/sonic"

// Envelope is the tagged result of one completed call. Exactly one of the
// success or failure cases is populated; Payload holds JSON text either way.
// A void success carries an empty payload, not "null".
type Envelope struct {
	Token   string `json:"token"`
	OK      bool   `json:"ok"`
	Payload string `json:"payload"`
}

// Success builds a success envelope carrying encoded JSON text.
func Success(token, payload string) Envelope {
	return Envelope{Token: token, OK: true, Payload: payload}
}

// Failure builds a failure envelope whose payload is the quoted error
// identifier.
func Failure(token string, err error) Envelope {
	quoted, encErr := sonic.Marshal(err.Error())
	if encErr != nil {
		quoted = []byte(`"internal error"`)
	}
	return Envelope{Token: token, OK: false, Payload: string(quoted)}
}
