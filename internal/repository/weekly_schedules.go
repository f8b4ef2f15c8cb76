package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
)

// GetUserSchedule 用户还没有课表时返回一份空课表，Version 为 0
func (r *Repository) GetUserSchedule(userID int64) (*domain.UserSchedule, error) {
	query := `
		SELECT schedule, version, updated_at
		FROM weekly_schedules WHERE user_id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	us := &domain.UserSchedule{
		UserID: userID,
	}

	var raw []byte
	if err := r.dbpool.QueryRowContext(ctx, query, userID).Scan(&raw, &us.Version, &us.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			us.Schedule = domain.NewWeeklySchedule()
			return us, nil
		}
		return nil, err
	}

	ws := domain.WeeklySchedule{}
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, err
	}
	us.Schedule = ws.Normalize()

	return us, nil
}

func (r *Repository) GetWeeklySchedule(userID int64) (domain.WeeklySchedule, error) {
	us, err := r.GetUserSchedule(userID)
	if err != nil {
		return nil, err
	}
	return us.Schedule, nil
}

// SetWeeklySchedule 整份覆盖写入，不检查版本
func (r *Repository) SetWeeklySchedule(userID int64, schedule domain.WeeklySchedule) error {
	raw, err := json.Marshal(schedule.Normalize())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO weekly_schedules (user_id, schedule)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET schedule = EXCLUDED.schedule,
			version = weekly_schedules.version + 1,
			updated_at = now()
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, userID, raw); err != nil {
		return err
	}

	return nil
}

// UpdateUserSchedule 手动编辑时使用，版本不一致时返回 sql.ErrNoRows
func (r *Repository) UpdateUserSchedule(us *domain.UserSchedule) error {
	raw, err := json.Marshal(us.Schedule.Normalize())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	// 版本为 0 说明还没有保存过课表，需要插入
	if us.Version == 0 {
		query := `
			INSERT INTO weekly_schedules (user_id, schedule)
			VALUES ($1, $2)
			ON CONFLICT (user_id) DO NOTHING
			RETURNING version, updated_at
		`
		return r.dbpool.QueryRowContext(ctx, query, us.UserID, raw).Scan(&us.Version, &us.UpdatedAt)
	}

	query := `
		UPDATE weekly_schedules
		SET schedule = $1,
			version = version + 1,
			updated_at = now()
		WHERE user_id = $2 AND version = $3
		RETURNING version, updated_at
	`
	return r.dbpool.QueryRowContext(ctx, query, raw, us.UserID, us.Version).Scan(&us.Version, &us.UpdatedAt)
}
