package remote

import (
	"context"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/splitmate-app/splitmate-sync/config"
	apperrors "github.com/splitmate-app/splitmate-sync/errors"
	"github.com/splitmate-app/splitmate-sync/logger"
	"github.com/splitmate-app/splitmate-sync/types"
)

const watchBufferSize = 64

// FirestoreClient implements Client against Cloud Firestore using the
// document layout:
//
//	/groups/{groupId}
//	/groups/{groupId}/members/{userId}
//	/groups/{groupId}/expenses/{expenseId}
//	/groups/{groupId}/expenses/{expenseId}/shares/{userId}
//
// Group documents additionally carry a memberIds array so the global watch
// can filter by membership with a single query.
type FirestoreClient struct {
	fs *firestore.Client
}

// NewFirestoreClient builds a Firestore-backed client from config. When an
// emulator host is configured it is exported so the SDK connects there.
func NewFirestoreClient(ctx context.Context, cfg config.FirestoreConfig) (*FirestoreClient, error) {
	log := logger.GetLogger()

	if cfg.EmulatorHost != "" {
		if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.EmulatorHost); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ServerError, "failed to configure firestore emulator host")
		}
		log.Infow("Using Firestore emulator", "host", cfg.EmulatorHost)
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ServerError, "failed to initialize firebase app")
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ServerError, "failed to create firestore client")
	}

	log.Infow("Connected to Firestore", "project", cfg.ProjectID)
	return &FirestoreClient{fs: fs}, nil
}

func (c *FirestoreClient) Close() error {
	return c.fs.Close()
}

func (c *FirestoreClient) groupDoc(groupID string) *firestore.DocumentRef {
	return c.fs.Collection("groups").Doc(groupID)
}

func (c *FirestoreClient) memberDoc(groupID, userID string) *firestore.DocumentRef {
	return c.groupDoc(groupID).Collection("members").Doc(userID)
}

func (c *FirestoreClient) expenseDoc(groupID, expenseID string) *firestore.DocumentRef {
	return c.groupDoc(groupID).Collection("expenses").Doc(expenseID)
}

func (c *FirestoreClient) shareDoc(groupID, expenseID, userID string) *firestore.DocumentRef {
	return c.expenseDoc(groupID, expenseID).Collection("shares").Doc(userID)
}

func (c *FirestoreClient) SaveGroup(ctx context.Context, group *types.Group) (time.Time, error) {
	data := map[string]interface{}{
		"name":           group.Name,
		"createdBy":      group.CreatedBy,
		"currency":       group.Currency,
		"lastActivityAt": group.LastActivityAt,
		"createdAt":      group.CreatedAt,
		"updatedAt":      firestore.ServerTimestamp,
		"memberIds":      firestore.ArrayUnion(group.CreatedBy),
	}
	if group.DeletedAt != nil {
		data["deletedAt"] = *group.DeletedAt
	}

	wr, err := c.groupDoc(group.ID).Set(ctx, data, firestore.MergeAll)
	if err != nil {
		return time.Time{}, classify(err, "failed to save group")
	}
	return wr.UpdateTime, nil
}

func (c *FirestoreClient) DeleteGroup(ctx context.Context, groupID string) error {
	if _, err := c.groupDoc(groupID).Delete(ctx); err != nil {
		return classify(err, "failed to delete group")
	}
	return nil
}

func (c *FirestoreClient) SaveMember(ctx context.Context, member *types.GroupMember) (time.Time, error) {
	wr, err := c.memberDoc(member.GroupID, member.UserID).Set(ctx, map[string]interface{}{
		"role":      member.Role,
		"createdAt": member.CreatedAt,
		"updatedAt": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return time.Time{}, classify(err, "failed to save group member")
	}

	// Keep the watch filter on the parent document in step with membership.
	_, err = c.groupDoc(member.GroupID).Update(ctx, []firestore.Update{
		{Path: "memberIds", Value: firestore.ArrayUnion(member.UserID)},
		{Path: "lastActivityAt", Value: firestore.ServerTimestamp},
	})
	if err != nil && status.Code(err) != codes.NotFound {
		return time.Time{}, classify(err, "failed to update group membership index")
	}
	return wr.UpdateTime, nil
}

func (c *FirestoreClient) DeleteMember(ctx context.Context, groupID, userID string) error {
	if _, err := c.memberDoc(groupID, userID).Delete(ctx); err != nil {
		return classify(err, "failed to delete group member")
	}
	_, err := c.groupDoc(groupID).Update(ctx, []firestore.Update{
		{Path: "memberIds", Value: firestore.ArrayRemove(userID)},
		{Path: "lastActivityAt", Value: firestore.ServerTimestamp},
	})
	if err != nil && status.Code(err) != codes.NotFound {
		return classify(err, "failed to update group membership index")
	}
	return nil
}

func (c *FirestoreClient) SaveExpense(ctx context.Context, expense *types.Expense, shares []*types.ExpenseShare) (time.Time, error) {
	data := map[string]interface{}{
		"groupId":     expense.GroupID,
		"paidBy":      expense.PaidBy,
		"description": expense.Description,
		"amount":      expense.Amount,
		"currency":    expense.Currency,
		"category":    expense.Category,
		"createdAt":   expense.CreatedAt,
		"updatedAt":   firestore.ServerTimestamp,
	}
	if expense.DeletedAt != nil {
		data["deletedAt"] = *expense.DeletedAt
	}

	wr, err := c.expenseDoc(expense.GroupID, expense.ID).Set(ctx, data, firestore.MergeAll)
	if err != nil {
		return time.Time{}, classify(err, "failed to save expense")
	}

	if err := c.replaceShares(ctx, expense.GroupID, expense.ID, shares); err != nil {
		return time.Time{}, err
	}
	if err := c.touchGroupActivity(ctx, expense.GroupID); err != nil {
		return time.Time{}, err
	}
	return wr.UpdateTime, nil
}

// replaceShares upserts the given shares and removes remote shares that are
// no longer part of the expense.
func (c *FirestoreClient) replaceShares(ctx context.Context, groupID, expenseID string, shares []*types.ExpenseShare) error {
	keep := make(map[string]bool, len(shares))
	for _, share := range shares {
		keep[share.UserID] = true
		_, err := c.shareDoc(groupID, expenseID, share.UserID).Set(ctx, map[string]interface{}{
			"amount":    share.Amount,
			"createdAt": share.CreatedAt,
			"updatedAt": firestore.ServerTimestamp,
		}, firestore.MergeAll)
		if err != nil {
			return classify(err, "failed to save expense share")
		}
	}

	iter := c.expenseDoc(groupID, expenseID).Collection("shares").Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return classify(err, "failed to list remote expense shares")
		}
		if !keep[doc.Ref.ID] {
			if _, err := doc.Ref.Delete(ctx); err != nil {
				return classify(err, "failed to delete stale expense share")
			}
		}
	}
}

func (c *FirestoreClient) DeleteExpense(ctx context.Context, groupID, expenseID string) error {
	if err := c.replaceShares(ctx, groupID, expenseID, nil); err != nil {
		return err
	}
	if _, err := c.expenseDoc(groupID, expenseID).Delete(ctx); err != nil {
		return classify(err, "failed to delete expense")
	}
	return c.touchGroupActivity(ctx, groupID)
}

func (c *FirestoreClient) SaveShare(ctx context.Context, groupID string, share *types.ExpenseShare) (time.Time, error) {
	wr, err := c.shareDoc(groupID, share.ExpenseID, share.UserID).Set(ctx, map[string]interface{}{
		"amount":    share.Amount,
		"createdAt": share.CreatedAt,
		"updatedAt": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return time.Time{}, classify(err, "failed to save expense share")
	}
	return wr.UpdateTime, nil
}

func (c *FirestoreClient) DeleteShare(ctx context.Context, groupID, expenseID, userID string) error {
	if _, err := c.shareDoc(groupID, expenseID, userID).Delete(ctx); err != nil {
		return classify(err, "failed to delete expense share")
	}
	return nil
}

// touchGroupActivity advances lastActivityAt on the parent group so inactive
// listeners can detect activity. Personal groups have no remote group
// document, which surfaces as NotFound and is expected.
func (c *FirestoreClient) touchGroupActivity(ctx context.Context, groupID string) error {
	_, err := c.groupDoc(groupID).Update(ctx, []firestore.Update{
		{Path: "lastActivityAt", Value: firestore.ServerTimestamp},
	})
	if err != nil && status.Code(err) != codes.NotFound {
		return classify(err, "failed to update group activity timestamp")
	}
	return nil
}

func (c *FirestoreClient) FetchGroup(ctx context.Context, groupID string) (*types.Group, error) {
	doc, err := c.groupDoc(groupID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, apperrors.NotFound("Group", groupID)
		}
		return nil, classify(err, "failed to fetch group")
	}
	return decodeGroup(doc)
}

func (c *FirestoreClient) FetchMembers(ctx context.Context, groupID string) ([]*types.GroupMember, error) {
	iter := c.groupDoc(groupID).Collection("members").Documents(ctx)
	defer iter.Stop()

	var members []*types.GroupMember
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return members, nil
		}
		if err != nil {
			return nil, classify(err, "failed to fetch group members")
		}
		member, err := decodeMember(groupID, doc)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
}

func (c *FirestoreClient) FetchExpenses(ctx context.Context, groupID string) ([]*types.Expense, error) {
	iter := c.groupDoc(groupID).Collection("expenses").Documents(ctx)
	defer iter.Stop()

	var expenses []*types.Expense
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return expenses, nil
		}
		if err != nil {
			return nil, classify(err, "failed to fetch expenses")
		}
		expense, err := decodeExpense(groupID, doc)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
}

func (c *FirestoreClient) FetchShares(ctx context.Context, groupID, expenseID string) ([]*types.ExpenseShare, error) {
	iter := c.expenseDoc(groupID, expenseID).Collection("shares").Documents(ctx)
	defer iter.Stop()

	var shares []*types.ExpenseShare
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return shares, nil
		}
		if err != nil {
			return nil, classify(err, "failed to fetch expense shares")
		}
		share, err := decodeShare(expenseID, doc)
		if err != nil {
			return nil, err
		}
		shares = append(shares, share)
	}
}

func (c *FirestoreClient) WatchGroups(ctx context.Context, userID string) (<-chan GroupChange, error) {
	log := logger.GetLogger().Named("firestore_watch")
	snaps := c.fs.Collection("groups").
		Where("memberIds", "array-contains", userID).
		Snapshots(ctx)

	ch := make(chan GroupChange, watchBufferSize)
	go func() {
		defer close(ch)
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					log.Warnw("Group watch terminated", "userId", userID, "error", err)
				}
				return
			}
			for _, change := range snap.Changes {
				group, err := decodeGroup(change.Doc)
				if err != nil {
					log.Warnw("Skipping undecodable group document", "docId", change.Doc.Ref.ID, "error", err)
					continue
				}
				select {
				case ch <- GroupChange{Kind: mapChangeKind(change.Kind), Group: group}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func (c *FirestoreClient) WatchExpenses(ctx context.Context, groupID string) (<-chan ExpenseChange, error) {
	log := logger.GetLogger().Named("firestore_watch")
	snaps := c.groupDoc(groupID).Collection("expenses").Snapshots(ctx)

	ch := make(chan ExpenseChange, watchBufferSize)
	go func() {
		defer close(ch)
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					log.Warnw("Expense watch terminated", "groupId", groupID, "error", err)
				}
				return
			}
			for _, change := range snap.Changes {
				expense, err := decodeExpense(groupID, change.Doc)
				if err != nil {
					log.Warnw("Skipping undecodable expense document", "docId", change.Doc.Ref.ID, "error", err)
					continue
				}
				select {
				case ch <- ExpenseChange{Kind: mapChangeKind(change.Kind), Expense: expense}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func mapChangeKind(kind firestore.DocumentChangeKind) ChangeKind {
	switch kind {
	case firestore.DocumentAdded:
		return ChangeAdded
	case firestore.DocumentModified:
		return ChangeModified
	default:
		return ChangeRemoved
	}
}

// classify maps a transport error onto the retryable/permanent taxonomy so
// the upload queue can decide whether an entry is worth another pass.
func classify(err error, message string) error {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.PermissionDenied, codes.FailedPrecondition,
		codes.Unauthenticated, codes.OutOfRange, codes.Unimplemented:
		return apperrors.RemotePermanent(err, message)
	default:
		return apperrors.RemoteTransient(err, message)
	}
}
