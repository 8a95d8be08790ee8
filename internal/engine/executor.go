package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"moodsun/api/internal/store"
)

// executor applies batches to one collection. Replace and delete report
// the count storage affected; insert either writes every record or fails.
type executor[T store.Record] struct {
	e    *Engine
	coll store.Collection[T]
	name string
}

func newExecutor[T store.Record](e *Engine, name string, coll store.Collection[T]) executor[T] {
	return executor[T]{e: e, coll: coll, name: name}
}

func (x executor[T]) insert(ctx context.Context, docs []T) error {
	if len(docs) == 0 {
		return nil
	}
	if err := x.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert %s: %w", x.name, err)
	}
	x.e.metrics.observeMutation(x.name, "insert", int64(len(docs)))
	return nil
}

func (x executor[T]) replace(ctx context.Context, docs []T) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	n, err := x.coll.ReplaceMany(ctx, docs)
	if err != nil {
		return n, fmt.Errorf("replace %s: %w", x.name, err)
	}
	x.e.metrics.observeMutation(x.name, "update", n)
	return n, nil
}

func (x executor[T]) remove(ctx context.Context, accountID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := x.coll.DeleteMany(ctx, store.Filter{AccountID: accountID, IDs: ids})
	if err != nil {
		return n, fmt.Errorf("delete %s: %w", x.name, err)
	}
	x.e.metrics.observeMutation(x.name, "delete", n)
	return n, nil
}

func (x executor[T]) replaceVerified(ctx context.Context, operation string, docs []T) error {
	n, err := x.replace(ctx, docs)
	if err != nil {
		return err
	}
	return x.e.verify(len(docs), n, operation)
}

func (x executor[T]) removeVerified(ctx context.Context, operation, accountID string, ids []string) error {
	n, err := x.remove(ctx, accountID, ids)
	if err != nil {
		return err
	}
	return x.e.verify(len(ids), n, operation)
}

// apply runs a plan as insert, then update, then delete.
func (x executor[T]) apply(ctx context.Context, operation, accountID string, plan Plan[T]) error {
	x.e.log.Debug("apply plan",
		zap.String("operation", operation),
		zap.String("collection", x.name),
		zap.Int("insert", len(plan.Insert)),
		zap.Int("update", len(plan.Update)),
		zap.Int("delete", len(plan.Delete)),
	)
	if err := x.insert(ctx, plan.Insert); err != nil {
		return err
	}
	if err := x.replaceVerified(ctx, operation+": update "+x.name, plan.Update); err != nil {
		return err
	}
	return x.removeVerified(ctx, operation+": delete "+x.name, accountID, idsOf(plan.Delete))
}

func idsOf[T store.Record](docs []T) []string {
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.Keys().ID)
	}
	return ids
}
