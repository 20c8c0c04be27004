package server

import (
	"context"
	"errors"
	"time"

	"github.com/tartanquest/campus/internal/quest"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type UserProfile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// VisitResult is the outcome of the idempotent visit-plus-reward operation.
// Created is false when the (user, zone) visit already existed, in which
// case NewBalance is the unchanged current balance.
type VisitResult struct {
	Created    bool
	NewBalance int
}

type QuestInput struct {
	Name            string
	Description     string
	Latitude        float64
	Longitude       float64
	Points          int
	Category        string
	StartTime       *time.Time
	InviteFriendIDs []string
}

type FriendEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	Status      string `json:"status"`
	BestFriend  bool   `json:"bestFriend"`
	Incoming    bool   `json:"incoming"`
}

type Transaction struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      int    `json:"amount"`
	Description string `json:"description"`
	CouponID    string `json:"couponId,omitempty"`
	CouponCode  string `json:"couponCode,omitempty"`
	Store       string `json:"store,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

type Mosaic struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Metadata  string `json:"metadata"`
	CreatedAt string `json:"createdAt"`
}

// VisitStore is the slice of the persistence contract the completion
// coordinator depends on.
type VisitStore interface {
	GetVisitedZoneIDs(ctx context.Context, userID string) ([]string, error)

	// RecordVisitAndReward atomically inserts the visit record and applies
	// the reward, unless the visit already exists.
	RecordVisitAndReward(ctx context.Context, userID, zoneID string, reward int) (VisitResult, error)
}

// QuestZoneStore supplies the per-user custom/invited quest zones merged
// into the geofence snapshot.
type QuestZoneStore interface {
	QuestZonesFor(ctx context.Context, userID string) ([]quest.Zone, error)
}

type Store interface {
	VisitStore
	QuestZoneStore

	UpsertUser(ctx context.Context, u UserProfile) error
	UserByID(ctx context.Context, id string) (UserProfile, error)
	UserIDByEmail(ctx context.Context, email string) (string, error)
	SearchUsers(ctx context.Context, query, selfID string) ([]UserProfile, error)
	WalletBalance(ctx context.Context, userID string) (int, error)

	CreateQuest(ctx context.Context, creatorID string, in QuestInput) (string, error)
	RespondQuestInvite(ctx context.Context, questID, userID string, accept bool) error
	DeleteQuest(ctx context.Context, questID, requesterID string) error

	AddFriend(ctx context.Context, userID, friendID string) error
	RespondFriend(ctx context.Context, userID, requesterID string, accept bool) error
	SetBestFriend(ctx context.Context, userID, friendID string, best bool) error
	ListFriends(ctx context.Context, userID string) ([]FriendEntry, error)

	AddBlock(ctx context.Context, userID, blockedUserID string) error
	ListBlocks(ctx context.Context, userID string) ([]string, error)

	Redeem(ctx context.Context, userID, couponID, couponName, store string, cost int) (couponCode string, newBalance int, err error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]Transaction, error)

	CollectMosaic(ctx context.Context, userID, mosaicType, metadata string) (Mosaic, error)
	ListMosaics(ctx context.Context, userID string) ([]Mosaic, error)
}
