package domain

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

const MailTypeScheduleImported = "schedule_imported"

type ScheduleImportedMailData struct {
	FullName string `json:"fullName"`
	Source   string `json:"source"`
	Added    int    `json:"added"`
	Updated  int    `json:"updated"`
}
