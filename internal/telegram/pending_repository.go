package telegram

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"

	"github.com/google/uuid"
)

// Pending is an auto-fill preview awaiting the user's Apply or Cancel.
type Pending struct {
	ID        string
	ChatID    int64
	UserID    int64
	WeekStart calendar.Date
	MealTypes []mealplan.MealType
	Cuisine   string
	Assigned  int
	// Slots are the previewed assignments, committed unchanged on Apply.
	Slots     []PreviewSlot
	CreatedAt time.Time
	ExpiresAt time.Time
}

// PreviewSlot is one previewed assignment with the title the user saw.
type PreviewSlot struct {
	mealplan.QuickPlanAssignment
	Title string `json:"title,omitempty"`
}

// Assignments returns the slots as quick-plan assignments.
func (p *Pending) Assignments() []mealplan.QuickPlanAssignment {
	out := make([]mealplan.QuickPlanAssignment, len(p.Slots))
	for i, s := range p.Slots {
		out[i] = s.QuickPlanAssignment
	}
	return out
}

// PendingRepository provides access to pending preview persistence.
type PendingRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPendingRepository creates a new PendingRepository instance.
func NewPendingRepository(db *sql.DB) *PendingRepository {
	return &PendingRepository{db: db, now: time.Now}
}

// Create stores p with the given time to live and returns its ID.
func (r *PendingRepository) Create(ctx context.Context, p Pending, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := r.now()

	types := make([]string, len(p.MealTypes))
	for i, mt := range p.MealTypes {
		types[i] = string(mt)
	}
	if p.Slots == nil {
		p.Slots = []PreviewSlot{}
	}
	slots, err := json.Marshal(p.Slots)
	if err != nil {
		return "", fmt.Errorf("failed to encode preview slots: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO telegram_pending
			(id, chat_id, user_id, week_start, meal_types, cuisine, assigned, slots, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ChatID, p.UserID, p.WeekStart.String(), strings.Join(types, ","),
		p.Cuisine, p.Assigned, string(slots), now.Unix(), now.Add(ttl).Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save pending preview: %w", err)
	}
	return p.ID, nil
}

// Get returns the pending preview with id, or nil when it is unknown or expired.
func (r *PendingRepository) Get(ctx context.Context, id string) (*Pending, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, chat_id, user_id, week_start, meal_types, cuisine, assigned, slots, created_at, expires_at
		FROM telegram_pending
		WHERE id = ? AND expires_at > ?`, id, r.now().Unix())

	var (
		p                   Pending
		week, types, slots  string
		createdAt, expireAt int64
	)
	err := row.Scan(&p.ID, &p.ChatID, &p.UserID, &week, &types, &p.Cuisine, &p.Assigned, &slots, &createdAt, &expireAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending preview: %w", err)
	}

	if p.WeekStart, err = calendar.Parse(week); err != nil {
		return nil, fmt.Errorf("pending preview %s: %w", id, err)
	}
	if p.MealTypes, err = mealplan.ParseMealTypes(types); err != nil {
		return nil, fmt.Errorf("pending preview %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(slots), &p.Slots); err != nil {
		return nil, fmt.Errorf("pending preview %s: invalid slots: %w", id, err)
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	p.ExpiresAt = time.Unix(expireAt, 0)
	return &p, nil
}

// Delete removes a pending preview. Deleting an unknown id is not an error.
func (r *PendingRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM telegram_pending WHERE id = ?`, id)
	return err
}

// CleanupExpired removes expired previews and reports how many were deleted.
func (r *PendingRepository) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM telegram_pending WHERE expires_at <= ?`, r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up pending previews: %w", err)
	}
	return res.RowsAffected()
}
