package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// claimRepository — in-memory реализация ClaimRepository.
type claimRepository struct {
	state *state
}

func (r *claimRepository) Create(_ context.Context, claim domain.Claim) error {
	if _, exists := r.state.claims[claim.ID]; exists {
		return fmt.Errorf("claim %s already exists", claim.ID)
	}
	claim.Items = append([]domain.ClaimItem(nil), claim.Items...)
	r.state.claims[claim.ID] = claim
	return nil
}

func (r *claimRepository) Get(_ context.Context, id string) (domain.Claim, error) {
	claim, ok := r.state.claims[id]
	if !ok {
		return domain.Claim{}, domain.ErrClaimNotFound
	}
	claim.Items = append([]domain.ClaimItem(nil), claim.Items...)
	return claim, nil
}

func (r *claimRepository) ListByUser(_ context.Context, userID string, limit int) ([]domain.Claim, error) {
	result := make([]domain.Claim, 0)
	for _, claim := range r.state.claims {
		if claim.UserID != userID {
			continue
		}
		claim.Items = append([]domain.ClaimItem(nil), claim.Items...)
		result = append(result, claim)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// SumClaimedQty суммирует количества по позиции заказа во всех не-REJECTED
// клеймах. Атомарность с последующей вставкой обеспечивает транзакция Store.
func (r *claimRepository) SumClaimedQty(_ context.Context, orderItemID string) (int32, error) {
	var total int32
	for _, claim := range r.state.claims {
		if claim.Status == domain.ClaimStatusRejected {
			continue
		}
		for _, item := range claim.Items {
			if item.OrderItemID == orderItemID {
				total += item.Qty
			}
		}
	}
	return total, nil
}

func (r *claimRepository) Save(_ context.Context, claim domain.Claim) error {
	current, ok := r.state.claims[claim.ID]
	if !ok {
		return domain.ErrClaimNotFound
	}
	claim.Items = current.Items
	r.state.claims[claim.ID] = claim
	return nil
}

func (r *claimRepository) Delete(_ context.Context, id string) error {
	if _, ok := r.state.claims[id]; !ok {
		return domain.ErrClaimNotFound
	}
	delete(r.state.claims, id)
	return nil
}

var _ domain.ClaimRepository = (*claimRepository)(nil)
