package localstore

import (
	"context"
	"ecare/cmd/internal/utils"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const syncStatusID = 1

type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&Prescription{},
		&PrescriptionItem{},
		&Medication{},
		&Appointment{},
		&SyncStatus{},
	)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SavePrescription stores a prescription written offline together with its
// items. Everything is marked unsynced.
func (s *Store) SavePrescription(ctx context.Context, pr *Prescription) error {
	now := utils.NowUTC()
	if pr.CreatedAt == 0 {
		pr.CreatedAt = now
	}
	pr.UpdatedAt = now
	pr.IsSynced = false
	op := OpCreate
	pr.PendingOperation = &op
	for i := range pr.Items {
		pr.Items[i].PrescriptionLocalID = pr.LocalID
		pr.Items[i].IsSynced = false
	}
	return s.db.WithContext(ctx).Create(pr).Error
}

func (s *Store) AddPrescriptionItem(ctx context.Context, item *PrescriptionItem) error {
	item.IsSynced = false
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) FindPrescription(ctx context.Context, localID string) (*Prescription, error) {
	var pr Prescription
	err := s.db.WithContext(ctx).Preload("Items").First(&pr, "local_id = ?", localID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &pr, err
}

// UnsyncedPrescriptions returns prescriptions never pushed, with all their
// items.
func (s *Store) UnsyncedPrescriptions(ctx context.Context) ([]*Prescription, error) {
	var prs []*Prescription
	err := s.db.WithContext(ctx).Preload("Items").
		Where("is_synced = ?", false).
		Order("created_at asc").
		Find(&prs).Error
	return prs, err
}

// UnsyncedItemsOfSyncedPrescriptions returns items added after their
// prescription already reached the server.
func (s *Store) UnsyncedItemsOfSyncedPrescriptions(ctx context.Context) ([]*PrescriptionItem, error) {
	var items []*PrescriptionItem
	err := s.db.WithContext(ctx).
		Joins("JOIN prescriptions ON prescriptions.local_id = prescription_items.prescription_local_id").
		Where("prescription_items.is_synced = ? AND prescriptions.is_synced = ?", false, true).
		Find(&items).Error
	return items, err
}

func (s *Store) MarkPrescriptionSynced(ctx context.Context, localID string, serverID int) error {
	return s.db.WithContext(ctx).Model(&Prescription{}).
		Where("local_id = ?", localID).
		Updates(map[string]any{
			"server_id":         serverID,
			"is_synced":         true,
			"pending_operation": nil,
			"updated_at":        utils.NowUTC(),
		}).Error
}

func (s *Store) MarkPrescriptionItemSynced(ctx context.Context, localID string, serverID int) error {
	return s.db.WithContext(ctx).Model(&PrescriptionItem{}).
		Where("local_id = ?", localID).
		Updates(map[string]any{"server_id": serverID, "is_synced": true}).Error
}

// ReplaceMedications upserts the server catalogue by id.
func (s *Store) ReplaceMedications(ctx context.Context, meds []*Medication) error {
	if len(meds) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&meds).Error
}

func (s *Store) Medications(ctx context.Context) ([]*Medication, error) {
	var meds []*Medication
	err := s.db.WithContext(ctx).Order("name asc").Find(&meds).Error
	return meds, err
}

// SaveAppointment queues an appointment booked offline.
func (s *Store) SaveAppointment(ctx context.Context, a *Appointment) error {
	op := OpCreate
	a.PendingOperation = &op
	a.IsSynced = false
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *Store) FindAppointment(ctx context.Context, localID string) (*Appointment, error) {
	var a Appointment
	err := s.db.WithContext(ctx).First(&a, "local_id = ?", localID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &a, err
}

// MarkAppointmentDeleted cancels an appointment. One that never reached the
// server is dropped right away; otherwise a DELETE is queued.
func (s *Store) MarkAppointmentDeleted(ctx context.Context, localID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a Appointment
		err := tx.First(&a, "local_id = ?", localID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if a.ServerID == nil {
			return tx.Delete(&a).Error
		}
		return tx.Model(&a).Updates(map[string]any{
			"pending_operation": OpDelete,
			"is_synced":         false,
		}).Error
	})
}

func (s *Store) PendingAppointmentCreates(ctx context.Context) ([]*Appointment, error) {
	return s.pendingAppointments(ctx, OpCreate)
}

func (s *Store) PendingAppointmentDeletes(ctx context.Context) ([]*Appointment, error) {
	return s.pendingAppointments(ctx, OpDelete)
}

func (s *Store) pendingAppointments(ctx context.Context, op Operation) ([]*Appointment, error) {
	var appts []*Appointment
	err := s.db.WithContext(ctx).
		Where("is_synced = ? AND pending_operation = ?", false, op).
		Order("starts_at asc").
		Find(&appts).Error
	return appts, err
}

// MarkAppointmentSynced records the server copy of a pushed appointment.
func (s *Store) MarkAppointmentSynced(ctx context.Context, localID string, serverID int, status, qrCode string) error {
	return s.db.WithContext(ctx).Model(&Appointment{}).
		Where("local_id = ?", localID).
		Updates(map[string]any{
			"server_id":         serverID,
			"status":            status,
			"qr_code":           qrCode,
			"is_synced":         true,
			"pending_operation": nil,
		}).Error
}

func (s *Store) RemoveAppointment(ctx context.Context, localID string) error {
	return s.db.WithContext(ctx).Delete(&Appointment{}, "local_id = ?", localID).Error
}

// PendingChanges counts every local row still waiting to be pushed.
func (s *Store) PendingChanges(ctx context.Context) (int, error) {
	var total int64
	for _, model := range []any{&Prescription{}, &PrescriptionItem{}, &Appointment{}} {
		var n int64
		if err := s.db.WithContext(ctx).Model(model).Where("is_synced = ?", false).Count(&n).Error; err != nil {
			return 0, err
		}
		total += n
	}
	return int(total), nil
}

// SyncStatus returns the status row, zero-valued before the first run.
func (s *Store) SyncStatus(ctx context.Context) (*SyncStatus, error) {
	st := SyncStatus{ID: syncStatusID}
	err := s.db.WithContext(ctx).FirstOrCreate(&st, SyncStatus{ID: syncStatusID}).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) SetSyncing(ctx context.Context, syncing bool) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_syncing"}),
	}).Create(&SyncStatus{ID: syncStatusID, IsSyncing: syncing}).Error
}

// RecordSync stamps the end of a run. lastSync is only advanced when the
// run pushed everything.
func (s *Store) RecordSync(ctx context.Context, complete bool, pending int) error {
	st := SyncStatus{ID: syncStatusID, PendingChanges: pending}
	columns := []string{"is_syncing", "pending_changes"}
	if complete {
		st.LastSyncTimestamp = utils.NowUTC()
		columns = append(columns, "last_sync_timestamp")
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&st).Error
}
