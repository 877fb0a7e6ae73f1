package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pm-system/internal/model"
	"pm-system/internal/repository"
	"pm-system/pkg/logger"
	"pm-system/pkg/orm"
	"pm-system/pkg/text"
	"pm-system/pkg/websocket"

	"go.uber.org/zap"
)

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrSelfMessage       = errors.New("cannot send message to yourself")
	ErrEmptyMessage      = errors.New("subject and body are required")
	ErrNotDraft          = errors.New("message is not a draft")
	ErrInvalidFormat     = errors.New("unknown body format")
)

// ViewCache 渲染结果缓存（message 命名空间）
type ViewCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}) error
}

// Notifier 向在线用户推送事件
type Notifier interface {
	Notify(userID uint, event websocket.Event) (bool, error)
}

// ComposeInput 撰写/编辑消息的输入
type ComposeInput struct {
	Recipient uint
	Subject   string
	Body      string
	Format    int
	Lang      string
	Draft     bool
}

// ListOptions 文件夹列表参数
type ListOptions struct {
	Folder    repository.Folder
	Direction orm.Direction
	Limit     int
	Offset    int
}

// MessageService 私信服务
type MessageService struct {
	factory  *repository.MessageFactory
	users    *repository.UserRepository
	cache    ViewCache
	notifier Notifier
	now      func() time.Time
}

// NewMessageService 创建MessageService实例，cache 与 notifier 可以为 nil
func NewMessageService(factory *repository.MessageFactory, users *repository.UserRepository, cache ViewCache, notifier Notifier) *MessageService {
	return &MessageService{
		factory:  factory,
		users:    users,
		cache:    cache,
		notifier: notifier,
		now:      time.Now,
	}
}

// Compose 撰写消息；Draft 为 true 时保存为草稿，否则直接发送
func (s *MessageService) Compose(ctx context.Context, sender uint, in ComposeInput) (*repository.MessageRecord, error) {
	if err := s.checkRecipient(ctx, sender, in.Recipient); err != nil {
		return nil, err
	}
	format, err := normalizeFormat(in.Format)
	if err != nil {
		return nil, err
	}
	if !in.Draft && isBlank(in.Subject, in.Body) {
		return nil, ErrEmptyMessage
	}

	m := s.factory.New()
	row := m.Row()
	row.Sender = sender
	row.Recipient = in.Recipient
	row.Subject = in.Subject
	row.Body = in.Body
	row.Format = format
	row.Lang = normalizeLang(in.Lang)
	row.Status = model.StatusDraft
	if !in.Draft {
		row.Status = model.StatusSent
		row.Sent = s.now().Unix()
	}

	if err := m.Save(ctx); err != nil {
		return nil, fmt.Errorf("保存消息失败: %w", err)
	}

	logger.Info("消息已保存",
		zap.Uint("id", m.PrimaryKey()),
		zap.Uint("sender", sender),
		zap.Uint("recipient", in.Recipient),
		zap.String("status", row.Status),
	)

	if !in.Draft {
		s.notify(m)
	}
	return m, nil
}

// UpdateDraft 编辑草稿；只有发送者可以编辑，Draft 为 false 时同时发送
func (s *MessageService) UpdateDraft(ctx context.Context, user, id uint, in ComposeInput) (*repository.MessageRecord, error) {
	m, err := s.ownDraft(ctx, user, id)
	if err != nil {
		return nil, err
	}

	row := m.Row()
	if in.Recipient != 0 && in.Recipient != row.Recipient {
		if err := s.checkRecipient(ctx, user, in.Recipient); err != nil {
			return nil, err
		}
		row.Recipient = in.Recipient
	}
	format, err := normalizeFormat(in.Format)
	if err != nil {
		return nil, err
	}
	if !in.Draft && isBlank(in.Subject, in.Body) {
		return nil, ErrEmptyMessage
	}

	row.Subject = in.Subject
	row.Body = in.Body
	row.Format = format
	if in.Lang != "" {
		row.Lang = normalizeLang(in.Lang)
	}
	if !in.Draft {
		row.Status = model.StatusSent
		row.Sent = s.now().Unix()
	}

	if err := m.Save(ctx); err != nil {
		return nil, fmt.Errorf("更新草稿失败: %w", err)
	}

	if !in.Draft {
		s.notify(m)
	}
	return m, nil
}

// SendDraft 发送草稿
func (s *MessageService) SendDraft(ctx context.Context, user, id uint) (*repository.MessageRecord, error) {
	m, err := s.ownDraft(ctx, user, id)
	if err != nil {
		return nil, err
	}

	row := m.Row()
	if isBlank(row.Subject, row.Body) {
		return nil, ErrEmptyMessage
	}
	row.Status = model.StatusSent
	row.Sent = s.now().Unix()

	if err := m.Save(ctx); err != nil {
		return nil, fmt.Errorf("发送草稿失败: %w", err)
	}

	s.notify(m)
	return m, nil
}

// List 列出用户某个文件夹的消息，附带发送者
func (s *MessageService) List(ctx context.Context, user uint, opts ListOptions) ([]*repository.MessageRecord, error) {
	m := s.factory.New().Load(user, opts.Folder, opts.Direction)
	if opts.Folder == repository.FolderAll {
		m.VisibleTo(user)
	}
	return m.WithSender().
		Page(opts.Limit, opts.Offset).
		All(ctx)
}

// View 查看单条消息，渲染结果缓存在 message 命名空间中
// 只有发送者和接收者可以查看，草稿只有发送者可以查看
func (s *MessageService) View(ctx context.Context, user, id uint) (*MessageView, error) {
	key := repository.CacheKey(id)

	if s.cache != nil {
		var cached MessageView
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			logger.Warn("读取消息缓存失败", zap.Error(err), zap.Uint("id", id))
		}
		if hit {
			if !canView(user, cached.Sender, cached.Recipient, cached.Status) {
				return nil, ErrPermissionDenied
			}
			return &cached, nil
		}
	}

	m, err := s.factory.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	m, err = m.GetOne()
	if err != nil {
		return nil, err
	}

	row := m.Row()
	if !canView(user, row.Sender, row.Recipient, row.Status) {
		return nil, ErrPermissionDenied
	}

	view := NewMessageView(m)
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, view); err != nil {
			logger.Warn("写入消息缓存失败", zap.Error(err), zap.Uint("id", id))
		}
	}
	return view, nil
}

// Delete 删除消息；发送者或接收者均可删除
func (s *MessageService) Delete(ctx context.Context, user, id uint) error {
	m, err := s.factory.Find(ctx, id)
	if err != nil {
		return err
	}
	if m, err = m.GetOne(); err != nil {
		return err
	}

	row := m.Row()
	if row.Sender != user && row.Recipient != user {
		return ErrPermissionDenied
	}

	if _, err := m.Delete(ctx); err != nil {
		return fmt.Errorf("删除消息失败: %w", err)
	}

	logger.Info("消息已删除", zap.Uint("id", id), zap.Uint("user", user))
	return nil
}

func (s *MessageService) ownDraft(ctx context.Context, user, id uint) (*repository.MessageRecord, error) {
	m, err := s.factory.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if m, err = m.GetOne(); err != nil {
		return nil, err
	}
	if m.Row().Sender != user {
		return nil, ErrPermissionDenied
	}
	if !m.Row().IsDraft() {
		return nil, ErrNotDraft
	}
	return m, nil
}

func (s *MessageService) checkRecipient(ctx context.Context, sender, recipient uint) error {
	if recipient == 0 {
		return ErrRecipientNotFound
	}
	if recipient == sender {
		return ErrSelfMessage
	}
	ok, err := s.users.Exists(ctx, recipient)
	if err != nil {
		return fmt.Errorf("查询接收者失败: %w", err)
	}
	if !ok {
		return ErrRecipientNotFound
	}
	return nil
}

// notify 推送新消息通知；接收者不在线时丢弃
func (s *MessageService) notify(m *repository.MessageRecord) {
	if s.notifier == nil {
		return
	}
	row := m.Row()
	delivered, err := s.notifier.Notify(row.Recipient, websocket.Event{
		Type: websocket.EventNewMessage,
		Data: map[string]interface{}{
			"id":      row.ID,
			"sender":  row.Sender,
			"subject": m.Subject(),
			"url":     m.URL(),
		},
	})
	if err != nil {
		logger.Warn("推送新消息通知失败", zap.Error(err), zap.Uint("id", row.ID))
		return
	}
	logger.Debug("新消息通知", zap.Uint("recipient", row.Recipient), zap.Bool("delivered", delivered))
}

func canView(user, sender, recipient uint, status string) bool {
	if status == model.StatusDraft {
		return user == sender
	}
	return user == sender || user == recipient
}

func normalizeFormat(format int) (int, error) {
	if format == 0 {
		return text.FormatFilteredHTML, nil
	}
	if !text.ValidFormat(format) {
		return 0, ErrInvalidFormat
	}
	return format, nil
}

func normalizeLang(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "en"
	}
	return lang
}

func isBlank(subject, body string) bool {
	return strings.TrimSpace(subject) == "" || strings.TrimSpace(body) == ""
}
