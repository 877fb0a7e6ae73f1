package orm_test

import (
	"context"
	"testing"

	"pm-system/internal/testutil"
	"pm-system/pkg/orm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type note struct {
	ID      uint `gorm:"primaryKey"`
	Owner   uint
	Title   string
	Created int64 `gorm:"autoCreateTime;<-:create"`
}

func (note) TableName() string  { return "note" }
func (n note) PrimaryKey() uint { return n.ID }

type RecordTestSuite struct {
	suite.Suite
	db  *gorm.DB
	ctx context.Context
}

func (s *RecordTestSuite) SetupTest() {
	s.db = testutil.NewDB(s.T(), &note{})
	s.ctx = context.Background()
}

func TestRecordTestSuite(t *testing.T) {
	suite.Run(t, new(RecordTestSuite))
}

func (s *RecordTestSuite) insert(owner uint, title string, created int64) note {
	n := note{Owner: owner, Title: title, Created: created}
	require.NoError(s.T(), s.db.Create(&n).Error)
	return n
}

// ==================== Save ====================

func (s *RecordTestSuite) TestSave_InsertFillsCreatedAndLoads() {
	r := orm.New[note](s.db)
	r.Row().Title = "first"

	require.NoError(s.T(), r.Save(s.ctx))

	assert.True(s.T(), r.Loaded())
	assert.NotZero(s.T(), r.PrimaryKey())
	assert.NotZero(s.T(), r.Row().Created)
}

func (s *RecordTestSuite) TestSave_UpdateKeepsCreated() {
	n := s.insert(1, "before", 1000)

	r := orm.New[note](s.db)
	require.NoError(s.T(), r.Find(s.ctx, n.ID))
	r.Row().Title = "after"
	r.Row().Created = 9999
	require.NoError(s.T(), r.Save(s.ctx))

	var stored note
	require.NoError(s.T(), s.db.First(&stored, n.ID).Error)
	assert.Equal(s.T(), "after", stored.Title)
	assert.Equal(s.T(), int64(1000), stored.Created)
}

// ==================== Find ====================

func (s *RecordTestSuite) TestFind_MissingRowStaysUnloaded() {
	r := orm.New[note](s.db)

	require.NoError(s.T(), r.Find(s.ctx, 404))

	assert.False(s.T(), r.Loaded())
	assert.Zero(s.T(), r.PrimaryKey())
}

func (s *RecordTestSuite) TestFind_ZeroID() {
	r := orm.New[note](s.db)

	require.NoError(s.T(), r.Find(s.ctx, 0))
	assert.False(s.T(), r.Loaded())
}

// ==================== Delete ====================

func (s *RecordTestSuite) TestDelete_NotLoaded() {
	s.insert(1, "keep", 1)
	r := orm.New[note](s.db)

	err := r.Delete(s.ctx)

	assert.ErrorIs(s.T(), err, orm.ErrNotLoaded)
	assert.Contains(s.T(), err.Error(), "note")

	var count int64
	s.db.Model(&note{}).Count(&count)
	assert.Equal(s.T(), int64(1), count)
}

func (s *RecordTestSuite) TestDelete_RemovesRowAndResets() {
	n := s.insert(1, "gone", 1)
	r := orm.New[note](s.db)
	require.NoError(s.T(), r.Find(s.ctx, n.ID))

	require.NoError(s.T(), r.Delete(s.ctx))

	assert.False(s.T(), r.Loaded())
	again := orm.New[note](s.db)
	require.NoError(s.T(), again.Find(s.ctx, n.ID))
	assert.False(s.T(), again.Loaded())
}

// ==================== Listing ====================

func (s *RecordTestSuite) TestFindAll_WhereAndOrder() {
	s.insert(1, "b", 200)
	s.insert(2, "other", 150)
	s.insert(1, "a", 100)
	s.insert(1, "c", 300)

	r := orm.New[note](s.db)
	rows, err := r.Where("owner = ?", 1).OrderBy("created", orm.ASC).FindAll(s.ctx)
	require.NoError(s.T(), err)

	titles := make([]string, 0, len(rows))
	for _, row := range rows {
		titles = append(titles, row.Title)
	}
	assert.Equal(s.T(), []string{"a", "b", "c"}, titles)
}

func (s *RecordTestSuite) TestFindAll_GroupCondition() {
	s.insert(1, "mine", 1)
	s.insert(2, "yours", 2)
	s.insert(3, "theirs", 3)

	r := orm.New[note](s.db)
	rows, err := r.Where(r.Cond("owner = ?", 1).Or("owner = ?", 2)).
		OrderBy("created", orm.DESC).
		FindAll(s.ctx)
	require.NoError(s.T(), err)

	require.Len(s.T(), rows, 2)
	assert.Equal(s.T(), "yours", rows[0].Title)
	assert.Equal(s.T(), "mine", rows[1].Title)
}

func (s *RecordTestSuite) TestFindAll_Paginate() {
	for i := int64(1); i <= 5; i++ {
		s.insert(1, "n", i)
	}

	rows, err := orm.New[note](s.db).OrderBy("created", orm.ASC).Paginate(2, 2).FindAll(s.ctx)
	require.NoError(s.T(), err)

	require.Len(s.T(), rows, 2)
	assert.Equal(s.T(), int64(3), rows[0].Created)
}

func TestFromRow(t *testing.T) {
	db := testutil.NewDB(t, &note{})

	assert.True(t, orm.FromRow(db, note{ID: 3}).Loaded())
	assert.False(t, orm.FromRow(db, note{}).Loaded())
}

func TestParseDirection(t *testing.T) {
	assert.Equal(t, orm.ASC, orm.ParseDirection("asc"))
	assert.Equal(t, orm.ASC, orm.ParseDirection(" ASC "))
	assert.Equal(t, orm.DESC, orm.ParseDirection("desc"))
	assert.Equal(t, orm.DESC, orm.ParseDirection(""))
	assert.Equal(t, orm.DESC, orm.ParseDirection("sideways"))
}
