package service

import "pm-system/internal/repository"

// MessageView 消息的展示形式（缓存在 message 命名空间中）
type MessageView struct {
	ID         uint   `json:"id"`
	Sender     uint   `json:"sender"`
	SenderName string `json:"sender_name,omitempty"`
	Recipient  uint   `json:"recipient"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	RawSubject string `json:"raw_subject"`
	RawBody    string `json:"raw_body"`
	Status     string `json:"status"`
	Format     int    `json:"format"`
	Created    int64  `json:"created"`
	Sent       int64  `json:"sent"`
	Lang       string `json:"lang"`
	URL        string `json:"url"`
	DeleteURL  string `json:"delete_url"`
}

// NewMessageView 由消息记录构建展示数据
func NewMessageView(m *repository.MessageRecord) *MessageView {
	row := m.Row()
	v := &MessageView{
		ID:         row.ID,
		Sender:     row.Sender,
		Recipient:  row.Recipient,
		Subject:    m.Subject(),
		Body:       m.Body(),
		RawSubject: m.RawSubject(),
		RawBody:    m.RawBody(),
		Status:     row.Status,
		Format:     row.Format,
		Created:    row.Created,
		Sent:       row.Sent,
		Lang:       row.Lang,
		URL:        m.URL(),
		DeleteURL:  m.DeleteURL(),
	}
	if row.User != nil {
		v.SenderName = row.User.Username
	}
	return v
}

// NewMessageViews 批量构建展示数据
func NewMessageViews(records []*repository.MessageRecord) []*MessageView {
	views := make([]*MessageView, 0, len(records))
	for _, m := range records {
		views = append(views, NewMessageView(m))
	}
	return views
}
