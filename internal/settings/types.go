// Package settings is the operator-editable key/value configuration.
package settings

// Well-known setting keys.
const (
	KeyAnswerMode          = "answer_mode"
	KeyAutoReplyEnabled    = "auto_reply_enabled"
	KeyMonitoringEnabled   = "monitoring_enabled"
	KeyNotificationEnabled = "notification_enabled"
	KeyMaxAnswerLength     = "max_answer_length"
	KeyTemperature         = "ai_temperature"
	KeyModel               = "ai_model"
	KeyCustomerTitle       = "cs_title_filter"
	KeyAnswerTitle         = "cs_answer_title"
	KeySlackWebhookURL     = "slack_webhook_url"
)

// Mode is the operator-selected automation level.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeSemiAuto Mode = "semi-auto"
	ModeManual   Mode = "manual"
)

// Defaults are the values Reset restores.
var Defaults = map[string]string{
	KeyAnswerMode:          string(ModeSemiAuto),
	KeyAutoReplyEnabled:    "false",
	KeyMonitoringEnabled:   "true",
	KeyNotificationEnabled: "true",
	KeyMaxAnswerLength:     "500",
	KeyTemperature:         "0.7",
}

// Setting is one stored key/value pair.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
