package store

import (
	"context"

	"treasury/internal/models"
)

// AuditStore appends audit records. The table has no update or delete path.
type AuditStore struct {
	db DB
}

type AuditInput struct {
	ID             string
	Action         string
	EntityType     string
	EntityID       string
	ActorUserID    string
	OrganizationID string
	PreviousStatus *string
	NewStatus      *string
	Data           string
}

const auditColumns = `id, action, entity_type, entity_id, actor_user_id, organization_id, previous_status, new_status, data, created_at`

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

// Record inserts one audit row inside tx and returns it as stored.
func (s *AuditStore) Record(ctx context.Context, tx Getter, input AuditInput) (models.AuditRecord, error) {
	var row models.AuditRecord
	err := tx.GetContext(ctx, &row, `
		INSERT INTO audit_logs (id, action, entity_type, entity_id, actor_user_id, organization_id, previous_status, new_status, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+auditColumns, input.ID, input.Action, input.EntityType, input.EntityID, input.ActorUserID,
		input.OrganizationID, input.PreviousStatus, input.NewStatus, input.Data)
	if err != nil {
		return models.AuditRecord{}, err
	}
	return row, nil
}

func (s *AuditStore) List(ctx context.Context, organizationID, entityID string, limit, offset int) ([]models.AuditRecord, error) {
	var rows []models.AuditRecord
	var err error
	if entityID == "" {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT `+auditColumns+`
			FROM audit_logs
			WHERE organization_id = $1
			ORDER BY created_at DESC, id
			LIMIT $2 OFFSET $3
		`, organizationID, limit, offset)
	} else {
		err = s.db.SelectContext(ctx, &rows, `
			SELECT `+auditColumns+`
			FROM audit_logs
			WHERE organization_id = $1 AND entity_id = $2
			ORDER BY created_at, id
			LIMIT $3 OFFSET $4
		`, organizationID, entityID, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}
