// Package model 包含了应用的数据模型定义。
package model

// User 对应于数据库中的 't_user' 表。
// Password 存放的是加盐哈希，注册后除密码轮换外不可变。
type User struct {
	UserID   uint   `gorm:"primaryKey;autoIncrement;column:user_id" json:"user_id"`
	Username string `gorm:"type:varchar(64);uniqueIndex;not null;column:username" json:"username"`
	Password string `gorm:"type:varchar(128);not null;column:password" json:"-"`
}

func (User) TableName() string {
	return "t_user"
}
