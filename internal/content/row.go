package content

import "time"

// Row is one immutable write of a single field.
type Row struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ContentKey string    `gorm:"column:content_key;type:text;not null" json:"content_key"`
	Value      string    `gorm:"column:value;type:text;not null" json:"value"`
	Page       string    `gorm:"column:page;type:text;not null;index:idx_content_page" json:"page"`
	Timestamp  time.Time `gorm:"column:timestamp;autoCreateTime" json:"timestamp"`
}

func (Row) TableName() string { return "content" }

// QualifiedKey is the "page.field" form used at the API boundary.
func (r Row) QualifiedKey() string { return r.Page + "." + r.ContentKey }
