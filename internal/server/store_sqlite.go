package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tartanquest/campus/internal/quest"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) UpsertUser(ctx context.Context, u UserProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, avatar_url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url
	`, u.ID, u.Email, u.DisplayName, u.AvatarURL)
	return err
}

func (s *SQLiteStore) UserByID(ctx context.Context, id string) (UserProfile, error) {
	var u UserProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, avatar_url FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

func (s *SQLiteStore) UserIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ?`, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return id, err
}

func (s *SQLiteStore) SearchUsers(ctx context.Context, query, selfID string) ([]UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, display_name, avatar_url
		FROM users
		WHERE display_name LIKE ? COLLATE NOCASE AND id != ?
		LIMIT 5
	`, "%"+query+"%", selfID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserProfile
	for rows.Next() {
		var u UserProfile
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) WalletBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return balance, err
}

func (s *SQLiteStore) GetVisitedZoneIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT zone_id FROM visited_zones WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordVisitAndReward runs as a single transaction: insert the visit row
// unless it exists, and only when the insert landed increment the balance.
// The primary key on (user_id, zone_id) makes concurrent duplicates collapse
// into one created row no matter how the attempts interleave.
func (s *SQLiteStore) RecordVisitAndReward(ctx context.Context, userID, zoneID string, reward int) (VisitResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return VisitResult{}, fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO visited_zones (user_id, zone_id) VALUES (?, ?)
	`, userID, zoneID)
	if err != nil {
		return VisitResult{}, fmt.Errorf("inserting visit: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return VisitResult{}, err
	}

	if inserted == 1 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET balance = balance + ? WHERE id = ?
		`, reward, userID); err != nil {
			return VisitResult{}, fmt.Errorf("applying reward: %w", err)
		}
	}

	var balance int
	if err := tx.QueryRowContext(ctx, `
		SELECT balance FROM users WHERE id = ?
	`, userID).Scan(&balance); err != nil {
		return VisitResult{}, fmt.Errorf("reading balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return VisitResult{}, fmt.Errorf("committing visit: %w", err)
	}
	return VisitResult{Created: inserted == 1, NewBalance: balance}, nil
}

// QuestZonesFor returns the user's custom quest zones: quests they created
// plus quests they were invited to, the latter carrying the invite status.
func (s *SQLiteStore) QuestZonesFor(ctx context.Context, userID string) ([]quest.Zone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.name, q.latitude, q.longitude, q.points, q.category, q.start_time,
		       q.creator_id, COALESCE(p.status, '')
		FROM custom_quests q
		LEFT JOIN quest_participants p ON p.quest_id = q.id AND p.user_id = ?
		WHERE q.creator_id = ? OR p.user_id = ?
	`, userID, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []quest.Zone
	for rows.Next() {
		var (
			z            quest.Zone
			startTime    sql.NullString
			creatorID    string
			inviteStatus string
		)
		if err := rows.Scan(&z.ID, &z.Name, &z.Latitude, &z.Longitude, &z.Reward,
			&z.Category, &startTime, &creatorID, &inviteStatus); err != nil {
			return nil, err
		}
		z.RadiusKm = customQuestRadiusKm
		if startTime.Valid && startTime.String != "" {
			t, err := time.Parse(time.RFC3339Nano, startTime.String)
			if err != nil {
				t, err = time.Parse(time.RFC3339, startTime.String)
			}
			if err == nil {
				z.Time = &t
			}
		}
		if creatorID == userID {
			z.Source = quest.SourceCustom
		} else {
			z.Source = quest.SourceCustomInvited
			z.InviteStatus = quest.InviteStatus(inviteStatus)
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

func (s *SQLiteStore) CreateQuest(ctx context.Context, creatorID string, in QuestInput) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var startTime any
	if in.StartTime != nil {
		startTime = in.StartTime.UTC().Format(time.RFC3339Nano)
	}

	var questID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO custom_quests (id, creator_id, name, description, latitude, longitude, points, category, start_time)
		VALUES (lower(hex(randomblob(16))), ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, creatorID, in.Name, in.Description, in.Latitude, in.Longitude, in.Points, in.Category, startTime).Scan(&questID)
	if err != nil {
		return "", fmt.Errorf("inserting quest: %w", err)
	}

	for _, friendID := range in.InviteFriendIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO quest_participants (quest_id, user_id, status)
			VALUES (?, ?, 'pending')
		`, questID, friendID); err != nil {
			return "", fmt.Errorf("inviting participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return questID, nil
}

// RespondQuestInvite accepts or declines an invite. Declining deletes the
// participant row outright, so the quest drops out of the user's zone
// snapshot and can never become proximity-completable for them.
func (s *SQLiteStore) RespondQuestInvite(ctx context.Context, questID, userID string, accept bool) error {
	var (
		res sql.Result
		err error
	)
	if accept {
		res, err = s.db.ExecContext(ctx, `
			UPDATE quest_participants SET status = 'accepted'
			WHERE quest_id = ? AND user_id = ?
		`, questID, userID)
	} else {
		res, err = s.db.ExecContext(ctx, `
			DELETE FROM quest_participants
			WHERE quest_id = ? AND user_id = ?
		`, questID, userID)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteQuest(ctx context.Context, questID, requesterID string) error {
	var creatorID string
	err := s.db.QueryRowContext(ctx, `
		SELECT creator_id FROM custom_quests WHERE id = ?
	`, questID).Scan(&creatorID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if creatorID != requesterID {
		return ErrForbidden
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM custom_quests WHERE id = ?`, questID)
	return err
}

func (s *SQLiteStore) AddFriend(ctx context.Context, userID, friendID string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO friendships (user_id, friend_id, status)
		VALUES (?, ?, 'pending')
	`, userID, friendID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// RespondFriend accepts or declines a pending request from requesterID.
// Accepting writes the reverse row so the friendship becomes two directed
// rows, each with its own best_friend flag.
func (s *SQLiteStore) RespondFriend(ctx context.Context, userID, requesterID string, accept bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if !accept {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM friendships WHERE user_id = ? AND friend_id = ? AND status = 'pending'
		`, requesterID, userID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return tx.Commit()
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE friendships SET status = 'accepted'
		WHERE user_id = ? AND friend_id = ? AND status = 'pending'
	`, requesterID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO friendships (user_id, friend_id, status) VALUES (?, ?, 'accepted')
		ON CONFLICT(user_id, friend_id) DO UPDATE SET status = 'accepted'
	`, userID, requesterID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SetBestFriend(ctx context.Context, userID, friendID string, best bool) error {
	flag := 0
	if best {
		flag = 1
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE friendships SET best_friend = ?
		WHERE user_id = ? AND friend_id = ? AND status = 'accepted'
	`, flag, userID, friendID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFriends returns the user's outgoing rows plus incoming pending
// requests, so the caller can render both the friend list and the inbox.
func (s *SQLiteStore) ListFriends(ctx context.Context, userID string) ([]FriendEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.display_name, u.avatar_url, f.status, f.best_friend, 0 AS incoming
		FROM friendships f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = ?
		UNION ALL
		SELECT u.id, u.display_name, u.avatar_url, f.status, 0, 1 AS incoming
		FROM friendships f
		JOIN users u ON u.id = f.user_id
		WHERE f.friend_id = ? AND f.status = 'pending'
	`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FriendEntry
	for rows.Next() {
		var (
			e              FriendEntry
			best, incoming int
		)
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.AvatarURL, &e.Status, &best, &incoming); err != nil {
			return nil, err
		}
		e.BestFriend = best == 1
		e.Incoming = incoming == 1
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddBlock records the block and severs any friendship in both directions.
func (s *SQLiteStore) AddBlock(ctx context.Context, userID, blockedUserID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO blocks (user_id, blocked_user_id) VALUES (?, ?)
	`, userID, blockedUserID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyExists
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM friendships
		WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)
	`, userID, blockedUserID, blockedUserID, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListBlocks(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT blocked_user_id FROM blocks WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Redeem deducts the coupon cost and records the transaction in one tx.
// The balance guard is in the UPDATE itself so two concurrent redemptions
// cannot both spend the same points.
func (s *SQLiteStore) Redeem(ctx context.Context, userID, couponID, couponName, store string, cost int) (string, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE users SET balance = balance - ? WHERE id = ? AND balance >= ?
	`, cost, userID, cost)
	if err != nil {
		return "", 0, fmt.Errorf("deducting balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", 0, ErrInsufficientBalance
	}

	couponCode := fmt.Sprintf("CMU-%s-%d", strings.ToUpper(couponID), time.Now().UnixMilli())

	var storeVal any
	if store != "" {
		storeVal = store
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, description, coupon_id, coupon_code, store)
		VALUES (lower(hex(randomblob(16))), ?, 'redemption', ?, ?, ?, ?, ?)
	`, userID, cost, couponName, couponID, couponCode, storeVal); err != nil {
		return "", 0, fmt.Errorf("recording transaction: %w", err)
	}

	var balance int
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, userID).Scan(&balance); err != nil {
		return "", 0, err
	}
	if err := tx.Commit(); err != nil {
		return "", 0, err
	}
	return couponCode, balance, nil
}

func (s *SQLiteStore) ListTransactions(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, amount, description,
		       COALESCE(coupon_id, ''), COALESCE(coupon_code, ''), COALESCE(store, ''), created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.Type, &t.Amount, &t.Description,
			&t.CouponID, &t.CouponCode, &t.Store, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CollectMosaic(ctx context.Context, userID, mosaicType, metadata string) (Mosaic, error) {
	if mosaicType == "" {
		mosaicType = "daily"
	}
	if metadata == "" {
		metadata = "{}"
	}
	var m Mosaic
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO mosaics (id, user_id, type, metadata)
		VALUES (lower(hex(randomblob(16))), ?, ?, ?)
		RETURNING id, type, metadata, created_at
	`, userID, mosaicType, metadata).Scan(&m.ID, &m.Type, &m.Metadata, &m.CreatedAt)
	return m, err
}

func (s *SQLiteStore) ListMosaics(ctx context.Context, userID string) ([]Mosaic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, metadata, created_at
		FROM mosaics
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Mosaic
	for rows.Next() {
		var m Mosaic
		if err := rows.Scan(&m.ID, &m.Type, &m.Metadata, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
