package orm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrNotLoaded 记录未绑定到已持久化的行
var ErrNotLoaded = errors.New("model is not loaded")

// Direction 排序方向
type Direction string

const (
	ASC  Direction = "ASC"
	DESC Direction = "DESC"
)

// ParseDirection 解析排序方向（不区分大小写），无法识别时为降序
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(ASC)) {
		return ASC
	}
	return DESC
}

// Schema 可绑定到Record的表结构
type Schema interface {
	TableName() string
	PrimaryKey() uint
}

// Record 通用的行记录绑定
// 未加载时处于列表模式，Where/OrderBy 累积查询条件，FindAll 执行查询；
// 加载后绑定到一行，Save 更新、Delete 删除。
type Record[T Schema] struct {
	db     *gorm.DB
	query  *gorm.DB
	row    T
	loaded bool
}

// New 创建未加载的记录
func New[T Schema](db *gorm.DB) *Record[T] {
	r := &Record[T]{db: db}
	r.Clear()
	return r
}

// FromRow 用已查询出的行创建记录，主键非零即视为已加载
func FromRow[T Schema](db *gorm.DB, row T) *Record[T] {
	r := New[T](db)
	r.row = row
	r.loaded = row.PrimaryKey() != 0
	return r
}

// Clear 重置为未加载状态并清空查询条件
func (r *Record[T]) Clear() {
	var zero T
	r.row = zero
	r.loaded = false
	r.query = r.db.Model(new(T))
}

// ObjectName 模型名称（表名）
func (r *Record[T]) ObjectName() string {
	var zero T
	return zero.TableName()
}

// Loaded 是否已绑定到持久化的行
func (r *Record[T]) Loaded() bool {
	return r.loaded
}

// Row 返回行数据，可直接修改字段后调用 Save
func (r *Record[T]) Row() *T {
	return &r.row
}

// PrimaryKey 主键值，未加载时为0
func (r *Record[T]) PrimaryKey() uint {
	return r.row.PrimaryKey()
}

// NotLoaded 构造未加载错误
func (r *Record[T]) NotLoaded(op string) error {
	return fmt.Errorf("cannot %s %s model: %w", op, r.ObjectName(), ErrNotLoaded)
}

// Find 按主键加载，行不存在时保持未加载且不返回错误
func (r *Record[T]) Find(ctx context.Context, id uint) error {
	r.Clear()
	if id == 0 {
		return nil
	}

	var row T
	tx := r.db.WithContext(ctx).Limit(1).Find(&row, id)
	if tx.Error != nil {
		return fmt.Errorf("加载%s失败: %w", r.ObjectName(), tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil
	}

	r.row = row
	r.loaded = true
	return nil
}

// Save 未加载时插入（由存储填充自增主键和创建时间），已加载时更新
func (r *Record[T]) Save(ctx context.Context) error {
	tx := r.db.WithContext(ctx)
	if !r.loaded {
		if err := tx.Create(&r.row).Error; err != nil {
			return fmt.Errorf("创建%s失败: %w", r.ObjectName(), err)
		}
		r.loaded = true
		return nil
	}

	if err := tx.Save(&r.row).Error; err != nil {
		return fmt.Errorf("更新%s失败: %w", r.ObjectName(), err)
	}
	return nil
}

// Delete 删除当前行（忽略关联关系），成功后记录回到未加载状态
func (r *Record[T]) Delete(ctx context.Context) error {
	if !r.loaded {
		return r.NotLoaded("delete")
	}

	if err := r.db.WithContext(ctx).Delete(new(T), r.row.PrimaryKey()).Error; err != nil {
		return fmt.Errorf("删除%s失败: %w", r.ObjectName(), err)
	}

	r.Clear()
	return nil
}

// Where 追加查询条件，query 可以是 Cond 构造的分组条件
func (r *Record[T]) Where(query interface{}, args ...interface{}) *Record[T] {
	r.query = r.query.Where(query, args...)
	return r
}

// Cond 构造分组条件，作为 Where 的参数时整体加括号
func (r *Record[T]) Cond(query interface{}, args ...interface{}) *gorm.DB {
	return r.db.Where(query, args...)
}

// OrderBy 追加排序
func (r *Record[T]) OrderBy(column string, dir Direction) *Record[T] {
	r.query = r.query.Order(column + " " + string(ParseDirection(string(dir))))
	return r
}

// Preload 列表查询时预加载关联
func (r *Record[T]) Preload(association string) *Record[T] {
	r.query = r.query.Preload(association)
	return r
}

// Paginate 限制返回条数，limit<=0 时不限制
func (r *Record[T]) Paginate(limit, offset int) *Record[T] {
	if limit > 0 {
		r.query = r.query.Limit(limit)
	}
	if offset > 0 {
		r.query = r.query.Offset(offset)
	}
	return r
}

// FindAll 执行累积的列表查询
func (r *Record[T]) FindAll(ctx context.Context) ([]T, error) {
	var rows []T
	if err := r.query.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询%s列表失败: %w", r.ObjectName(), err)
	}
	return rows, nil
}
