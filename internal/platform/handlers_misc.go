package platform

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aviarysim/aviary/internal/action"
	"github.com/aviarysim/aviary/internal/store"
)

// signUpProduct registers a product under a caller-chosen id. Names are
// unique across the catalog.
func (p *Platform) signUpProduct(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	productID, ok := payloadInt(payload, "product_id")
	if !ok {
		return failure("product_id is required")
	}
	productName, ok := payloadString(payload, "product_name")
	if !ok {
		return failure("product_name is required")
	}
	existing, err := p.store.GetProductByName(productName)
	if err != nil {
		return failure(err.Error())
	}
	if existing != nil {
		return failure(reasonProductExists)
	}

	trace := &store.TraceRow{
		UserID: userID, CreatedAt: p.clock.Now(), Action: action.SignUpProduct,
		Info: map[string]any{"product_id": productID, "product_name": productName},
	}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		return store.InsertProduct(tx, &store.Product{ProductID: productID, ProductName: productName})
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"product_id": productID, "product_name": productName})
}

func (p *Platform) purchaseProduct(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	productName, ok := payloadString(payload, "product_name")
	if !ok {
		return failure("product_name is required")
	}
	purchaseNum, ok := payloadInt(payload, "purchase_num")
	if !ok {
		return failure("purchase_num is required")
	}
	product, err := p.store.GetProductByName(productName)
	if err != nil {
		return failure(err.Error())
	}
	if product == nil {
		return failure(reasonProductMissing)
	}

	trace := &store.TraceRow{
		UserID: userID, CreatedAt: p.clock.Now(), Action: action.PurchaseProduct,
		Info: map[string]any{"product_name": productName, "purchase_num": purchaseNum},
	}
	err = p.store.Mutate(ctx, trace, func(tx *sql.Tx) error {
		return store.BumpProductSales(tx, product.ProductID, purchaseNum)
	})
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"product_name": productName, "purchase_num": purchaseNum})
}

// doNothing records that the agent sat this step out. The trace row is
// what matters: activation probabilities are tuned against it.
func (p *Platform) doNothing(ctx context.Context, userID int64) map[string]any {
	trace := &store.TraceRow{
		UserID: userID, CreatedAt: p.clock.Now(), Action: action.DoNothing,
		Info: map[string]any{},
	}
	if err := p.store.Mutate(ctx, trace, nil); err != nil {
		return failure(err.Error())
	}
	return success(nil)
}

// interview logs a researcher question put to the agent. The driver
// appends a second row carrying the answer once the agent has produced
// it; rows are never edited in place.
func (p *Platform) interview(ctx context.Context, userID int64, payload map[string]any) map[string]any {
	prompt, ok := payloadString(payload, "prompt")
	if !ok {
		return failure("prompt is required")
	}
	now := p.clock.Now()
	interviewID := fmt.Sprintf("%s_%d", now, userID)

	info := map[string]any{"prompt": prompt, "interview_id": interviewID}
	if response, ok := payloadString(payload, "response"); ok {
		info["response"] = response
	}
	trace := &store.TraceRow{
		UserID: userID, CreatedAt: now, Action: action.Interview, Info: info,
	}
	if err := p.store.Mutate(ctx, trace, nil); err != nil {
		return failure(err.Error())
	}
	return success(map[string]any{"interview_id": interviewID})
}
