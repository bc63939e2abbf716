package messaging

import (
	"encoding/xml"
)

// TwiMLContentType is the Content-Type for webhook replies.
const TwiMLContentType = "text/xml; charset=utf-8"

type twimlMessage struct {
	Body string `xml:",chardata"`
}

type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Message *twimlMessage `xml:"Message,omitempty"`
}

// RenderReply renders a TwiML document answering with text. Markup in text
// is escaped. An empty text yields an empty <Response/>.
func RenderReply(text string) []byte {
	resp := twimlResponse{}
	if text != "" {
		resp.Message = &twimlMessage{Body: text}
	}
	out, err := xml.Marshal(resp)
	if err != nil {
		// chardata of a plain string cannot fail to marshal
		return []byte(xml.Header + "<Response></Response>")
	}
	return append([]byte(xml.Header), out...)
}
