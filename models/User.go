package models

import "time"

type SocialLinks struct {
	Twitter   string `gorm:"size:255" bson:"twitter,omitempty" json:"twitter,omitempty"`
	Instagram string `gorm:"size:255" bson:"instagram,omitempty" json:"instagram,omitempty"`
	Website   string `gorm:"size:255" bson:"website,omitempty" json:"website,omitempty"`
}

type Goal struct {
	Title         string `gorm:"size:120" bson:"title,omitempty" json:"title,omitempty"`
	TargetAmount  int64  `bson:"target_amount,omitempty" json:"targetAmount,omitempty"`
	CurrentAmount int64  `bson:"current_amount,omitempty" json:"currentAmount,omitempty"`
}

// User is both a supporter and, once they have a profile, a creator.
type User struct {
	ID       string `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Username string `gorm:"size:64;not null;uniqueIndex" bson:"username" json:"username"`
	Email    string `gorm:"size:255;not null;uniqueIndex" bson:"email" json:"email"`
	Name     string `gorm:"size:120" bson:"name" json:"name"`

	PasswordHash string `gorm:"size:255" bson:"password_hash" json:"-"`

	Bio         string      `gorm:"type:text" bson:"bio,omitempty" json:"bio,omitempty"`
	Image       string      `gorm:"size:512" bson:"image,omitempty" json:"image,omitempty"`
	SocialLinks SocialLinks `gorm:"embedded;embeddedPrefix:social_" bson:"social_links" json:"socialLinks"`
	Goal        Goal        `gorm:"embedded;embeddedPrefix:goal_" bson:"goal" json:"goals"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
