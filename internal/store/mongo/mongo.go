// Package mongo is the document-store adapter backed by MongoDB. Expenses are
// one document per line item filtered by uid; settings are one document per
// user keyed by uid. Budget merges use dotted $set paths so concurrent
// sessions writing different months never overwrite each other.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"despesas/internal/core"
	"despesas/internal/identity"
	"despesas/internal/store"
)

type Store struct {
	client   *mongo.Client
	expenses *mongo.Collection
	settings *mongo.Collection
	accounts *mongo.Collection
	hub      *store.Hub
}

type expenseDoc struct {
	UID          string `bson:"uid"`
	core.Expense `bson:",inline"`
}

type settingsDoc struct {
	UID           string `bson:"_id"`
	core.Settings `bson:",inline"`
}

type accountDoc struct {
	UID          string `bson:"_id"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"passwordHash"`
}

func New(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		client:   client,
		expenses: db.Collection("expenses"),
		settings: db.Collection("settings"),
		accounts: db.Collection("accounts"),
		hub:      store.NewHub(),
	}

	_, err = s.expenses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "uid", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("create uid index: %w", err)
	}
	_, err = s.accounts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create email index: %w", err)
	}

	slog.InfoContext(ctx, "Connected to MongoDB", "database", dbName)
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) listExpenses(ctx context.Context, uid string) ([]core.Expense, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.expenses.Find(ctx, bson.M{"uid": uid}, opts)
	if err != nil {
		return nil, fmt.Errorf("find expenses: %w", err)
	}
	defer cursor.Close(ctx)

	var expenses []core.Expense
	for cursor.Next(ctx) {
		var doc expenseDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode expense: %w", err)
		}
		expenses = append(expenses, doc.Expense)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func (s *Store) ListExpenses(ctx context.Context, uid string) ([]core.Expense, error) {
	return s.listExpenses(ctx, uid)
}

func (s *Store) notifyExpenses(ctx context.Context, uid string) {
	snap, err := s.listExpenses(ctx, uid)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load expense snapshot for watchers", "uid", uid, "error", err)
		return
	}
	s.hub.NotifyExpenses(uid, snap)
}

func (s *Store) CreateExpense(ctx context.Context, uid string, e core.Expense) (string, error) {
	e.ID = uuid.NewString()
	if e.PaidMonths == nil {
		e.PaidMonths = []core.MonthKey{}
	}
	if _, err := s.expenses.InsertOne(ctx, expenseDoc{UID: uid, Expense: e}); err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}

	s.notifyExpenses(ctx, uid)
	return e.ID, nil
}

func (s *Store) ReplaceExpense(ctx context.Context, uid string, e core.Expense) error {
	if e.PaidMonths == nil {
		e.PaidMonths = []core.MonthKey{}
	}
	res, err := s.expenses.ReplaceOne(ctx,
		bson.M{"_id": e.ID, "uid": uid}, expenseDoc{UID: uid, Expense: e})
	if err != nil {
		return fmt.Errorf("replace expense: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("replace expense: id %q not found", e.ID)
	}

	s.notifyExpenses(ctx, uid)
	return nil
}

func (s *Store) SetPaidMonths(ctx context.Context, uid, id string, months []core.MonthKey) error {
	if months == nil {
		months = []core.MonthKey{}
	}
	res, err := s.expenses.UpdateOne(ctx,
		bson.M{"_id": id, "uid": uid},
		bson.M{"$set": bson.M{"paidMonths": months}})
	if err != nil {
		return fmt.Errorf("update paid months: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("set paid months: id %q not found", id)
	}

	s.notifyExpenses(ctx, uid)
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, uid, id string) error {
	if _, err := s.expenses.DeleteOne(ctx, bson.M{"_id": id, "uid": uid}); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.notifyExpenses(ctx, uid)
	return nil
}

func (s *Store) getSettings(ctx context.Context, uid string) (core.Settings, bool, error) {
	var doc settingsDoc
	err := s.settings.FindOne(ctx, bson.M{"_id": uid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return core.Settings{}, false, nil
	}
	if err != nil {
		return core.Settings{}, false, fmt.Errorf("find settings: %w", err)
	}
	if doc.Budgets == nil {
		doc.Budgets = core.BudgetMap{}
	}
	return doc.Settings, true, nil
}

func (s *Store) GetSettings(ctx context.Context, uid string) (core.Settings, bool, error) {
	return s.getSettings(ctx, uid)
}

func (s *Store) notifySettings(ctx context.Context, uid string) {
	snap, found, err := s.getSettings(ctx, uid)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load settings snapshot for watchers", "uid", uid, "error", err)
		return
	}
	if found {
		s.hub.NotifySettings(uid, snap)
	}
}

func (s *Store) CreateSettings(ctx context.Context, uid string, settings core.Settings) error {
	_, err := s.settings.InsertOne(ctx, settingsDoc{UID: uid, Settings: settings})
	if mongo.IsDuplicateKeyError(err) {
		// Another session already initialized; never clobber.
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert settings: %w", err)
	}

	s.notifySettings(ctx, uid)
	return nil
}

func (s *Store) MergeBudgets(ctx context.Context, uid string, budgets core.BudgetMap) error {
	set := bson.M{}
	for month, amount := range budgets {
		set["budgets."+string(month)] = amount
	}
	_, err := s.settings.UpdateOne(ctx,
		bson.M{"_id": uid}, bson.M{"$set": set},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("merge budgets: %w", err)
	}

	s.notifySettings(ctx, uid)
	return nil
}

func (s *Store) MergeCategories(ctx context.Context, uid string, categories []string) error {
	_, err := s.settings.UpdateOne(ctx,
		bson.M{"_id": uid},
		bson.M{"$set": bson.M{"categories": categories}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("merge categories: %w", err)
	}

	s.notifySettings(ctx, uid)
	return nil
}

func (s *Store) WatchExpenses(uid string, fn func([]core.Expense)) func() {
	cancel := s.hub.SubscribeExpenses(uid, fn)
	snap, err := s.listExpenses(context.Background(), uid)
	if err != nil {
		slog.Error("Failed to load initial expense snapshot", "uid", uid, "error", err)
		snap = nil
	}
	fn(snap)
	return cancel
}

func (s *Store) WatchSettings(uid string, fn func(core.Settings)) func() {
	cancel := s.hub.SubscribeSettings(uid, fn)
	snap, found, err := s.getSettings(context.Background(), uid)
	if err != nil {
		slog.Error("Failed to load initial settings snapshot", "uid", uid, "error", err)
		return cancel
	}
	if found {
		fn(snap)
	}
	return cancel
}

func (s *Store) Refresh(ctx context.Context, uid string) error {
	snap, err := s.listExpenses(ctx, uid)
	if err != nil {
		return err
	}
	s.hub.NotifyExpenses(uid, snap)

	settings, found, err := s.getSettings(ctx, uid)
	if err != nil {
		return err
	}
	if found {
		s.hub.NotifySettings(uid, settings)
	}
	return nil
}

func (s *Store) Users(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}

	fromExpenses, err := s.expenses.Distinct(ctx, "uid", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("distinct expense uids: %w", err)
	}
	for _, v := range fromExpenses {
		if uid, ok := v.(string); ok {
			seen[uid] = true
		}
	}

	fromSettings, err := s.settings.Distinct(ctx, "_id", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("distinct settings uids: %w", err)
	}
	for _, v := range fromSettings {
		if uid, ok := v.(string); ok {
			seen[uid] = true
		}
	}

	uids := make([]string, 0, len(seen))
	for uid := range seen {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids, nil
}

// CreateAccount implements identity.Accounts.
func (s *Store) CreateAccount(ctx context.Context, a identity.Account) error {
	doc := accountDoc{
		UID:          a.UID,
		Email:        identity.NormalizeEmail(a.Email),
		PasswordHash: a.PasswordHash,
	}
	_, err := s.accounts.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return identity.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// AccountByEmail implements identity.Accounts.
func (s *Store) AccountByEmail(ctx context.Context, email string) (identity.Account, bool, error) {
	var doc accountDoc
	err := s.accounts.FindOne(ctx, bson.M{"email": identity.NormalizeEmail(email)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return identity.Account{}, false, nil
	}
	if err != nil {
		return identity.Account{}, false, fmt.Errorf("find account: %w", err)
	}
	return identity.Account{UID: doc.UID, Email: doc.Email, PasswordHash: doc.PasswordHash}, true, nil
}
