package webhook

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Event names sent by Cafe24.
const (
	EventPostCreated    = "board.post.created"
	EventReplyCreated   = "board.reply.created"
	EventInquiryCreated = "customer.inquiry.created"
)

const (
	signatureHeader = "X-Cafe24-Signature"
	signaturePrefix = "sha256="
)

// envelope is the outer webhook payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// postCreated is the data of board.post.created.
type postCreated struct {
	BoardID    flexString `json:"board_id"`
	PostID     flexString `json:"post_id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	CustomerID flexString `json:"customer_id"`
	ParentID   flexString `json:"parent_post_id"`
	ReplyDepth flexString `json:"reply_depth"`
	IsNotice   flexBool   `json:"is_notice"`
}

// replyCreated is the data of board.reply.created.
type replyCreated struct {
	BoardID      flexString `json:"board_id"`
	PostID       flexString `json:"post_id"`
	ReplyContent string     `json:"reply_content"`
	IsAdmin      flexBool   `json:"is_admin"`
}

// inquiryCreated is the data of customer.inquiry.created.
type inquiryCreated struct {
	InquiryID flexString `json:"inquiry_id"`
	Subject   string     `json:"subject"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexBool accepts true/false, "T"/"F" and numeric flags.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	switch strings.ToUpper(s) {
	case "T", "Y":
		*f = true
		return nil
	case "F", "N", "", "NULL":
		*f = false
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*f = flexBool(v)
	return nil
}

var errMissingIDs = errors.New("board_id and post_id are required")
