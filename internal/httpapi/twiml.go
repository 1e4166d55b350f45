package httpapi

import (
	"encoding/xml"
	"net/http"

	"github.com/rgaros/fixline/internal/dialog"
)

// Minimal TwiML for speech-gather driven calls.
// Twilio expects Content-Type: text/xml.
type twimlResponse struct {
	XMLName  xml.Name       `xml:"Response"`
	Start    *twimlStart    `xml:"Start,omitempty"`
	Say      *twimlSay      `xml:"Say,omitempty"`
	Gather   *twimlGather   `xml:"Gather,omitempty"`
	Redirect *twimlRedirect `xml:"Redirect,omitempty"`
	Hangup   *twimlHangup   `xml:"Hangup,omitempty"`
	Reject   *twimlReject   `xml:"Reject,omitempty"`
}

type twimlSay struct {
	Voice string `xml:"voice,attr,omitempty"`
	Text  string `xml:",chardata"`
}

type twimlGather struct {
	Input         string    `xml:"input,attr"`
	Action        string    `xml:"action,attr"`
	Method        string    `xml:"method,attr"`
	Language      string    `xml:"language,attr,omitempty"`
	Timeout       int       `xml:"timeout,attr,omitempty"`
	SpeechTimeout string    `xml:"speechTimeout,attr,omitempty"`
	Say           *twimlSay `xml:"Say,omitempty"`
}

type twimlRedirect struct {
	Method string `xml:"method,attr,omitempty"`
	URL    string `xml:",chardata"`
}

type twimlHangup struct{}

type twimlReject struct {
	Reason string `xml:"reason,attr,omitempty"` // "rejected" or "busy"
}

// twimlStart forks the call audio to our media websocket without blocking
// the rest of the TwiML document.
type twimlStart struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter,omitempty"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

const gatherLanguage = "en-US"

// turnTwiML renders a dialogue turn. Gather turns also carry a Redirect so
// that a silent timeout still posts back to the continue endpoint, which is
// how the no-input ladder gets driven.
func turnTwiML(turn dialog.Turn, actionURL string, start *twimlStart) twimlResponse {
	if turn.Hangup {
		return twimlResponse{
			Start:  start,
			Say:    &twimlSay{Text: turn.Say},
			Hangup: &twimlHangup{},
		}
	}
	return twimlResponse{
		Start: start,
		Gather: &twimlGather{
			Input:         "speech",
			Action:        actionURL,
			Method:        http.MethodPost,
			Language:      gatherLanguage,
			Timeout:       int(turn.GatherTimeout.Seconds()),
			SpeechTimeout: "auto",
			Say:           &twimlSay{Text: turn.Say},
		},
		Redirect: &twimlRedirect{Method: http.MethodPost, URL: actionURL},
	}
}

func writeTwiML(w http.ResponseWriter, resp twimlResponse) {
	out, _ := xml.MarshalIndent(resp, "", "  ")
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}
