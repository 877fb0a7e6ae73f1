package model

// 消息状态
const (
	StatusDraft = "draft" // 草稿，仅发送者的草稿箱可见
	StatusSent  = "sent"  // 已发送
)

// Message 私信模型
// Created 首次写入时自动填充（unix秒），之后不可更新
// Sent 草稿发送时记录（unix秒）
// User 为发送者（belongs-to），删除消息不级联
type Message struct {
	ID        uint   `gorm:"primaryKey"`
	Sender    uint   `gorm:"not null;index;comment:发送者ID"`
	Recipient uint   `gorm:"not null;index;comment:接收者ID"`
	Subject   string `gorm:"type:varchar(255);comment:主题(原始文本)"`
	Body      string `gorm:"type:text;comment:正文(标记源文本)"`
	Status    string `gorm:"type:varchar(32);not null;default:'draft';index;comment:消息状态"`
	Format    int    `gorm:"not null;default:1;comment:正文渲染格式"`
	Created   int64  `gorm:"autoCreateTime;<-:create;index;comment:创建时间"`
	Sent      int64  `gorm:"not null;default:0;comment:发送时间"`
	Lang      string `gorm:"type:varchar(12);default:'en';comment:语言代码"`
	User      *User  `gorm:"foreignKey:Sender"`
}

func (Message) TableName() string { return "message" }

// PrimaryKey 主键值
func (m Message) PrimaryKey() uint { return m.ID }

// IsDraft 是否为草稿
func (m Message) IsDraft() bool { return m.Status == StatusDraft }
