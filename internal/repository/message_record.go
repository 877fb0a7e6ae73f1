package repository

import (
	"context"
	"errors"
	"strconv"

	"pm-system/internal/model"
	"pm-system/pkg/orm"

	"gorm.io/gorm"
)

// ErrMessageNotFound 请求的消息不存在
var ErrMessageNotFound = errors.New("message not found")

// Folder 消息文件夹（相对于查看者）
type Folder int

const (
	FolderAll    Folder = iota // 收件箱、发件箱和草稿箱合并
	FolderInbox                // 收到的非草稿消息
	FolderOutbox               // 发出的非草稿消息
	FolderDrafts               // 自己的草稿
)

var folderNames = map[Folder]string{
	FolderAll:    "list",
	FolderInbox:  "inbox",
	FolderOutbox: "outbox",
	FolderDrafts: "drafts",
}

func (f Folder) String() string {
	if name, ok := folderNames[f]; ok {
		return name
	}
	return "list"
}

// ParseFolder 按名称解析文件夹
func ParseFolder(name string) (Folder, bool) {
	for f, n := range folderNames {
		if n == name {
			return f, true
		}
	}
	return FolderAll, false
}

// TextRenderer 主题转义与正文渲染
type TextRenderer interface {
	Plain(raw string) string
	Markup(raw string, format int) string
}

// URLRoute 根据参数生成URL
type URLRoute interface {
	URI(params map[string]string) string
}

// CacheInvalidator 缓存失效
type CacheInvalidator interface {
	Invalidate(ctx context.Context, key string) error
}

// MessageFactory 创建共享同一组依赖的 MessageRecord
type MessageFactory struct {
	db    *gorm.DB
	text  TextRenderer
	route URLRoute
	cache CacheInvalidator
}

// NewMessageFactory 创建MessageFactory实例
func NewMessageFactory(db *gorm.DB, text TextRenderer, route URLRoute, cache CacheInvalidator) *MessageFactory {
	return &MessageFactory{db: db, text: text, route: route, cache: cache}
}

// New 创建未加载的消息记录
func (f *MessageFactory) New() *MessageRecord {
	return &MessageRecord{Record: orm.New[model.Message](f.db), factory: f}
}

// Find 按ID加载消息，不存在时返回未加载的记录
func (f *MessageFactory) Find(ctx context.Context, id uint) (*MessageRecord, error) {
	m := f.New()
	if err := m.Find(ctx, id); err != nil {
		return nil, err
	}
	return m, nil
}

// FromRow 包装已查询出的行
func (f *MessageFactory) FromRow(row model.Message) *MessageRecord {
	return &MessageRecord{Record: orm.FromRow(f.db, row), factory: f}
}

// MessageRecord 私信记录
// 读取访问器对存储值做展示转换，不修改存储状态
type MessageRecord struct {
	*orm.Record[model.Message]
	factory *MessageFactory
}

// CacheKey 消息在缓存命名空间中的key
func CacheKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Subject 转义后的主题
func (m *MessageRecord) Subject() string {
	return m.factory.text.Plain(m.Row().Subject)
}

// Body 按 format 渲染后的正文
func (m *MessageRecord) Body() string {
	return m.factory.text.Markup(m.Row().Body, m.Row().Format)
}

// RawSubject 原始主题（编辑时使用）
func (m *MessageRecord) RawSubject() string {
	return m.Row().Subject
}

// RawBody 原始正文（编辑时使用）
func (m *MessageRecord) RawBody() string {
	return m.Row().Body
}

// URL 查看地址
func (m *MessageRecord) URL() string {
	return m.uri("view")
}

// DeleteURL 删除地址
func (m *MessageRecord) DeleteURL() string {
	return m.uri("delete")
}

func (m *MessageRecord) uri(action string) string {
	params := map[string]string{"action": action}
	if id := m.PrimaryKey(); id != 0 {
		params["id"] = CacheKey(id)
	}
	return m.factory.route.URI(params)
}

// Field 按字段名读取，派生字段与访问器一致，其余字段返回存储值
func (m *MessageRecord) Field(name string) (interface{}, bool) {
	row := m.Row()
	switch name {
	case "subject":
		return m.Subject(), true
	case "body":
		return m.Body(), true
	case "rawsubject":
		return m.RawSubject(), true
	case "rawbody":
		return m.RawBody(), true
	case "url":
		return m.URL(), true
	case "delete_url":
		return m.DeleteURL(), true
	case "id":
		return row.ID, true
	case "sender":
		return row.Sender, true
	case "recipient":
		return row.Recipient, true
	case "status":
		return row.Status, true
	case "format":
		return row.Format, true
	case "created":
		return row.Created, true
	case "sent":
		return row.Sent, true
	case "lang":
		return row.Lang, true
	default:
		return nil, false
	}
}

// Save 持久化；更新已有消息前先使其缓存失效
func (m *MessageRecord) Save(ctx context.Context) error {
	if m.Loaded() {
		if err := m.factory.cache.Invalidate(ctx, CacheKey(m.PrimaryKey())); err != nil {
			return err
		}
	}
	return m.Record.Save(ctx)
}

// Delete 删除消息，忽略关联关系
// 先使 message 命名空间中的缓存失效，再删除行
func (m *MessageRecord) Delete(ctx context.Context) (*MessageRecord, error) {
	if !m.Loaded() {
		return m, m.NotLoaded("delete")
	}

	if err := m.factory.cache.Invalidate(ctx, CacheKey(m.PrimaryKey())); err != nil {
		return m, err
	}

	if err := m.Record.Delete(ctx); err != nil {
		return m, err
	}
	return m, nil
}

// Load 构建文件夹列表查询，按 created 排序
// 已加载的记录原样返回；查询在 All 时执行
func (m *MessageRecord) Load(userID uint, folder Folder, dir orm.Direction) *MessageRecord {
	if m.Loaded() {
		return m
	}

	m.OrderBy("created", dir)

	switch folder {
	case FolderInbox:
		m.Where(m.Cond("recipient = ?", userID).Where("status <> ?", model.StatusDraft))
	case FolderOutbox:
		m.Where(m.Cond("sender = ?", userID).Where("status <> ?", model.StatusDraft))
	case FolderDrafts:
		m.Where(m.Cond("sender = ?", userID).Where("status = ?", model.StatusDraft))
	default:
		m.Where(m.Cond("sender = ?", userID).Or("recipient = ?", userID))
	}

	return m
}

// LoadInbox 收件箱
func (m *MessageRecord) LoadInbox(userID uint, dir orm.Direction) *MessageRecord {
	return m.Load(userID, FolderInbox, dir)
}

// LoadOutbox 发件箱
func (m *MessageRecord) LoadOutbox(userID uint, dir orm.Direction) *MessageRecord {
	return m.Load(userID, FolderOutbox, dir)
}

// LoadDrafts 草稿箱
func (m *MessageRecord) LoadDrafts(userID uint, dir orm.Direction) *MessageRecord {
	return m.Load(userID, FolderDrafts, dir)
}

// VisibleTo 排除他人的草稿，草稿只对发送者可见
func (m *MessageRecord) VisibleTo(userID uint) *MessageRecord {
	if !m.Loaded() {
		m.Where(m.Cond("status <> ?", model.StatusDraft).Or("sender = ?", userID))
	}
	return m
}

// WithSender 列表查询时预加载发送者
func (m *MessageRecord) WithSender() *MessageRecord {
	if !m.Loaded() {
		m.Preload("User")
	}
	return m
}

// Page 分页
func (m *MessageRecord) Page(limit, offset int) *MessageRecord {
	if !m.Loaded() {
		m.Paginate(limit, offset)
	}
	return m
}

// All 执行列表查询；已加载的记录只返回自身
func (m *MessageRecord) All(ctx context.Context) ([]*MessageRecord, error) {
	if m.Loaded() {
		return []*MessageRecord{m}, nil
	}

	rows, err := m.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*MessageRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, m.factory.FromRow(row))
	}
	return records, nil
}

// GetOne 返回已加载的消息
// 读取不会改变消息状态
func (m *MessageRecord) GetOne() (*MessageRecord, error) {
	if !m.Loaded() {
		return nil, ErrMessageNotFound
	}
	return m, nil
}
