package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/movex/dispatch/internal/pkg/apperrors"
	"github.com/movex/dispatch/internal/pkg/models"
)

// RideRepo is the postgres-backed ride store. Acceptance races and
// cancellation races are resolved here with conditional updates; there is
// no in-memory copy of ride state.
type RideRepo struct {
	cfg *models.Config
	db  *sqlx.DB
}

func NewRideRepository(cfg *models.Config, db *sqlx.DB) *RideRepo {
	return &RideRepo{
		cfg: cfg,
		db:  db,
	}
}

const rideColumns = `
	id, rider_id, driver_id, status,
	origin_lat, origin_lng, origin_desc,
	dest_lat, dest_lng, dest_desc,
	fare, distance_km, eta_minutes, rider_name, rider_phone,
	requested_at, accepted_at, driver_arrived_at, started_at, ended_at, cancelled_at,
	cancelled_by_type, cancelled_by_id, cancel_reason,
	driver_rating, rider_rating, driver_comment, rider_comment,
	driver_unreachable`

// scanRide parses one ride row into a model
func scanRide(row *sql.Row) (*models.Ride, error) {
	ride := &models.Ride{}
	var driverID, cancelledByType, cancelledByID, cancelReason sql.NullString
	var driverComment, riderComment, riderName, riderPhone sql.NullString
	var acceptedAt, arrivedAt, startedAt, endedAt, cancelledAt sql.NullTime
	var driverRating, riderRating sql.NullInt64

	err := row.Scan(
		&ride.ID,
		&ride.RiderID,
		&driverID,
		&ride.Status,
		&ride.Origin.Latitude,
		&ride.Origin.Longitude,
		&ride.OriginDesc,
		&ride.Destination.Latitude,
		&ride.Destination.Longitude,
		&ride.DestDesc,
		&ride.Fare,
		&ride.DistanceKm,
		&ride.ETAMinutes,
		&riderName,
		&riderPhone,
		&ride.RequestedAt,
		&acceptedAt,
		&arrivedAt,
		&startedAt,
		&endedAt,
		&cancelledAt,
		&cancelledByType,
		&cancelledByID,
		&cancelReason,
		&driverRating,
		&riderRating,
		&driverComment,
		&riderComment,
		&ride.DriverUnreachable,
	)
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		ride.DriverID = driverID.String
	}
	if riderName.Valid {
		ride.RiderName = riderName.String
	}
	if riderPhone.Valid {
		ride.RiderPhone = riderPhone.String
	}
	if acceptedAt.Valid {
		ride.AcceptedAt = &acceptedAt.Time
	}
	if arrivedAt.Valid {
		ride.DriverArrivedAt = &arrivedAt.Time
	}
	if startedAt.Valid {
		ride.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		ride.EndedAt = &endedAt.Time
	}
	if cancelledAt.Valid {
		ride.CancelledAt = &cancelledAt.Time
	}
	if cancelledByType.Valid {
		ride.CancelledByType = models.ActorType(cancelledByType.String)
	}
	if cancelledByID.Valid {
		ride.CancelledByID = cancelledByID.String
	}
	if cancelReason.Valid {
		ride.CancelReason = cancelReason.String
	}
	if driverRating.Valid {
		ride.DriverRating = int(driverRating.Int64)
	}
	if riderRating.Valid {
		ride.RiderRating = int(riderRating.Int64)
	}
	if driverComment.Valid {
		ride.DriverComment = driverComment.String
	}
	if riderComment.Valid {
		ride.RiderComment = riderComment.String
	}

	return ride, nil
}

// CreateRide inserts a new ride in the requested state
func (r *RideRepo) CreateRide(ctx context.Context, ride *models.Ride) error {
	query := `
		INSERT INTO rides (
			id, rider_id, status,
			origin_lat, origin_lng, origin_desc,
			dest_lat, dest_lng, dest_desc,
			fare, distance_km, eta_minutes, rider_name, rider_phone,
			requested_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		ride.ID,
		ride.RiderID,
		ride.Status,
		ride.Origin.Latitude,
		ride.Origin.Longitude,
		ride.OriginDesc,
		ride.Destination.Latitude,
		ride.Destination.Longitude,
		ride.DestDesc,
		ride.Fare,
		ride.DistanceKm,
		ride.ETAMinutes,
		ride.RiderName,
		ride.RiderPhone,
		ride.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	return nil
}

// GetRide retrieves a ride by ID
func (r *RideRepo) GetRide(ctx context.Context, rideID string) (*models.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.db.QueryRowContext(ctx, query, rideID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("ride %s not found", rideID)
		}
		return nil, err
	}

	return ride, nil
}

// AcceptRide assigns the driver iff the ride is still waiting for one.
// The conditional update is the single authority for the acceptance race:
// whichever driver's update matches the row wins, everyone else conflicts.
func (r *RideRepo) AcceptRide(ctx context.Context, rideID, driverID string) (*models.Ride, error) {
	query := `
		UPDATE rides
		SET driver_id = $2, status = $3, accepted_at = $4
		WHERE id = $1 AND status = $5
		RETURNING ` + rideColumns

	ride, err := scanRide(r.db.QueryRowContext(
		ctx, query, rideID, driverID, models.RideStatusAccepted, time.Now(), models.RideStatusRequested,
	))
	if err == nil {
		return ride, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Zero rows: either the ride is gone or someone else already took it.
	existing, getErr := r.GetRide(ctx, rideID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperrors.Conflict("ride %s is no longer available (status %s)", rideID, existing.Status)
}

// timestampColumn maps a target status to the column stamped on entry
func timestampColumn(to models.RideStatus) string {
	switch to {
	case models.RideStatusDriverArrived:
		return "driver_arrived_at"
	case models.RideStatusInProgress:
		return "started_at"
	case models.RideStatusCompleted:
		return "ended_at"
	default:
		return ""
	}
}

// UpdateStatus transitions a ride to the target status iff its current
// status is one of the allowed predecessors.
func (r *RideRepo) UpdateStatus(ctx context.Context, rideID string, to models.RideStatus, allowedFrom ...models.RideStatus) (*models.Ride, error) {
	if len(allowedFrom) == 0 {
		return nil, apperrors.Validation("no predecessor statuses given")
	}

	set := "status = $2"
	args := []interface{}{rideID, to}
	if col := timestampColumn(to); col != "" {
		set += fmt.Sprintf(", %s = $3", col)
		args = append(args, time.Now())
	}

	placeholders := make([]string, len(allowedFrom))
	for i := range allowedFrom {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+i+1)
	}
	for _, s := range allowedFrom {
		args = append(args, s)
	}

	query := fmt.Sprintf(
		`UPDATE rides SET %s WHERE id = $1 AND status IN (%s) RETURNING %s`,
		set, strings.Join(placeholders, ", "), rideColumns,
	)

	ride, err := scanRide(r.db.QueryRowContext(ctx, query, args...))
	if err == nil {
		return ride, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	existing, getErr := r.GetRide(ctx, rideID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperrors.InvalidTransition("cannot move ride %s from %s to %s", rideID, existing.Status, to)
}

// CancelRide terminates a non-terminal ride, recording who cancelled and why
func (r *RideRepo) CancelRide(ctx context.Context, rideID string, actor models.ActorType, actorID, reason string) (*models.Ride, error) {
	query := `
		UPDATE rides
		SET status = $2, cancelled_at = $3, cancelled_by_type = $4, cancelled_by_id = $5, cancel_reason = $6
		WHERE id = $1 AND status NOT IN ($7, $8)
		RETURNING ` + rideColumns

	ride, err := scanRide(r.db.QueryRowContext(
		ctx, query, rideID, models.RideStatusCancelled, time.Now(), actor, actorID, reason,
		models.RideStatusCompleted, models.RideStatusCancelled,
	))
	if err == nil {
		return ride, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	existing, getErr := r.GetRide(ctx, rideID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperrors.InvalidTransition("ride %s already terminal (status %s)", rideID, existing.Status)
}

// SetDriverRating records the rider's rating of the driver. The ride must be
// completed and not rated yet in this direction.
func (r *RideRepo) SetDriverRating(ctx context.Context, rideID string, rating int, comment string) (*models.Ride, error) {
	query := `
		UPDATE rides
		SET driver_rating = $2, driver_comment = $3
		WHERE id = $1 AND status = $4 AND driver_rating IS NULL
		RETURNING ` + rideColumns

	return r.scanRatingUpdate(ctx, query, rideID, rating, comment)
}

// SetRiderRating records the driver's rating of the rider
func (r *RideRepo) SetRiderRating(ctx context.Context, rideID string, rating int, comment string) (*models.Ride, error) {
	query := `
		UPDATE rides
		SET rider_rating = $2, rider_comment = $3
		WHERE id = $1 AND status = $4 AND rider_rating IS NULL
		RETURNING ` + rideColumns

	return r.scanRatingUpdate(ctx, query, rideID, rating, comment)
}

func (r *RideRepo) scanRatingUpdate(ctx context.Context, query, rideID string, rating int, comment string) (*models.Ride, error) {
	ride, err := scanRide(r.db.QueryRowContext(
		ctx, query, rideID, rating, comment, models.RideStatusCompleted,
	))
	if err == nil {
		return ride, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	existing, getErr := r.GetRide(ctx, rideID)
	if getErr != nil {
		return nil, getErr
	}
	if existing.Status != models.RideStatusCompleted {
		return nil, apperrors.InvalidTransition("ride %s is not completed (status %s)", rideID, existing.Status)
	}
	return nil, apperrors.Conflict("ride %s already rated", rideID)
}

// SetDriverUnreachable flags or clears the driver-unreachable marker
func (r *RideRepo) SetDriverUnreachable(ctx context.Context, rideID string, unreachable bool) error {
	query := `UPDATE rides SET driver_unreachable = $2 WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, rideID, unreachable)
	return err
}

// ActiveRideByRider returns the rider's single non-terminal ride
func (r *RideRepo) ActiveRideByRider(ctx context.Context, riderID string) (*models.Ride, error) {
	return r.activeRideBy(ctx, "rider_id", riderID)
}

// ActiveRideByDriver returns the driver's single non-terminal ride
func (r *RideRepo) ActiveRideByDriver(ctx context.Context, driverID string) (*models.Ride, error) {
	return r.activeRideBy(ctx, "driver_id", driverID)
}

func (r *RideRepo) activeRideBy(ctx context.Context, column, userID string) (*models.Ride, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM rides
		WHERE %s = $1 AND status NOT IN ($2, $3)
		ORDER BY requested_at DESC
		LIMIT 1`, rideColumns, column)

	ride, err := scanRide(r.db.QueryRowContext(
		ctx, query, userID, models.RideStatusCompleted, models.RideStatusCancelled,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("no active ride for %s", userID)
		}
		return nil, err
	}

	return ride, nil
}
