package remote

import (
	"time"

	"cloud.google.com/go/firestore"

	apperrors "github.com/splitmate-app/splitmate-sync/errors"
	"github.com/splitmate-app/splitmate-sync/types"
)

// Document decoding goes through maps rather than struct tags: timestamp
// fields written by older client versions may arrive as ISO-8601 strings or
// epoch milliseconds, and CoerceTimestamp absorbs all three shapes.

func decodeGroup(doc *firestore.DocumentSnapshot) (*types.Group, error) {
	data := doc.Data()
	group := &types.Group{
		ID:        doc.Ref.ID,
		Name:      docString(data, "name"),
		CreatedBy: docString(data, "createdBy"),
		Currency:  docString(data, "currency"),
	}

	var err error
	if group.LastActivityAt, err = docTime(data, "lastActivityAt"); err != nil {
		return nil, decodeErr(err, "group", doc.Ref.ID)
	}
	if group.CreatedAt, err = docTime(data, "createdAt"); err != nil {
		return nil, decodeErr(err, "group", doc.Ref.ID)
	}
	if group.UpdatedAt, err = docTime(data, "updatedAt"); err != nil {
		return nil, decodeErr(err, "group", doc.Ref.ID)
	}
	if group.DeletedAt, err = docNullableTime(data, "deletedAt"); err != nil {
		return nil, decodeErr(err, "group", doc.Ref.ID)
	}
	return group, nil
}

func decodeMember(groupID string, doc *firestore.DocumentSnapshot) (*types.GroupMember, error) {
	data := doc.Data()
	member := &types.GroupMember{
		GroupID: groupID,
		UserID:  doc.Ref.ID,
		Role:    docString(data, "role"),
	}

	var err error
	if member.CreatedAt, err = docTime(data, "createdAt"); err != nil {
		return nil, decodeErr(err, "group member", doc.Ref.ID)
	}
	if member.UpdatedAt, err = docTime(data, "updatedAt"); err != nil {
		return nil, decodeErr(err, "group member", doc.Ref.ID)
	}
	return member, nil
}

func decodeExpense(groupID string, doc *firestore.DocumentSnapshot) (*types.Expense, error) {
	data := doc.Data()
	expense := &types.Expense{
		ID:          doc.Ref.ID,
		GroupID:     groupID,
		PaidBy:      docString(data, "paidBy"),
		Description: docString(data, "description"),
		Amount:      docFloat(data, "amount"),
		Currency:    docString(data, "currency"),
		Category:    docString(data, "category"),
	}

	var err error
	if expense.CreatedAt, err = docTime(data, "createdAt"); err != nil {
		return nil, decodeErr(err, "expense", doc.Ref.ID)
	}
	if expense.UpdatedAt, err = docTime(data, "updatedAt"); err != nil {
		return nil, decodeErr(err, "expense", doc.Ref.ID)
	}
	if expense.DeletedAt, err = docNullableTime(data, "deletedAt"); err != nil {
		return nil, decodeErr(err, "expense", doc.Ref.ID)
	}
	return expense, nil
}

func decodeShare(expenseID string, doc *firestore.DocumentSnapshot) (*types.ExpenseShare, error) {
	data := doc.Data()
	share := &types.ExpenseShare{
		ExpenseID: expenseID,
		UserID:    doc.Ref.ID,
		Amount:    docFloat(data, "amount"),
	}

	var err error
	if share.CreatedAt, err = docTime(data, "createdAt"); err != nil {
		return nil, decodeErr(err, "expense share", doc.Ref.ID)
	}
	if share.UpdatedAt, err = docTime(data, "updatedAt"); err != nil {
		return nil, decodeErr(err, "expense share", doc.Ref.ID)
	}
	return share, nil
}

func decodeErr(err error, entity, id string) error {
	return apperrors.RemotePermanent(err, "failed to decode "+entity+" document "+id)
}

func docString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func docFloat(data map[string]interface{}, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func docTime(data map[string]interface{}, key string) (time.Time, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return time.Time{}, nil
	}
	return types.CoerceTimestamp(v)
}

func docNullableTime(data map[string]interface{}, key string) (*time.Time, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return nil, nil
	}
	t, err := types.CoerceTimestamp(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
