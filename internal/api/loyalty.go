package api

import (
	"context"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/pkg/errors"
)

func (s *service) CheckLoyaltyInfo(ctx context.Context, customerID int64, packageID int64, quantity int) (*domain.LoyaltyCheck, error) {
	if quantity < 1 {
		return nil, errors.New("check loyalty: quantity must be at least 1")
	}

	if s.monitor.Connected() {
		check, err := s.client.CheckLoyalty(ctx, customerID, packageID, quantity)
		switch {
		case err == nil:
			return check, nil
		case domain.IsUnreachable(err):
			// the cached computation below gives the same answer
		case domain.IsSessionExpired(err):
			s.bus.Publish(domain.EventSessionExpired)
			return nil, err
		default:
			return nil, err
		}
	}

	return s.loyaltyFromCache(ctx, customerID, packageID, quantity)
}

// loyaltyFromCache prices the refill from cached state. The free refill
// count is how many interval boundaries the customer's points cross within
// this purchase: floor((points+q)/interval) - floor(points/interval),
// capped at q.
func (s *service) loyaltyFromCache(ctx context.Context, customerID int64, packageID int64, quantity int) (*domain.LoyaltyCheck, error) {
	customers, _ := s.customers.Get(ctx)
	var customer *domain.Customer
	for i := range customers {
		if customers[i].ID == customerID {
			customer = &customers[i]
			break
		}
	}
	if customer == nil {
		return nil, errors.New("check loyalty: customer %d is not in the offline cache", customerID)
	}

	packages, _ := s.packages.Get(ctx)
	var pkg *domain.Package
	for i := range packages {
		if packages[i].ID == packageID {
			pkg = &packages[i]
			break
		}
	}
	if pkg == nil {
		return nil, errors.New("check loyalty: package %d is not in the offline cache", packageID)
	}

	points := 0
	if customer.Loyalty != nil {
		points = customer.Loyalty.CurrentPoints
	}
	interval := s.freeRefillInterval(ctx, customer)

	check := &domain.LoyaltyCheck{PaidQuantity: quantity, FromCache: true}
	if interval > 0 {
		after := points + quantity
		free := after/interval - points/interval
		if free > quantity {
			free = quantity
		}
		check.FreeQuantity = free
		check.PaidQuantity = quantity - free
		check.RefillsUntilNextFree = interval - after%interval
	}
	check.TotalCost = domain.Money(float64(check.PaidQuantity) * float64(pkg.Price))
	return check, nil
}

// freeRefillInterval resolves the loyalty interval of the customer's shop.
// Zero disables the program, which is also what the backend does.
func (s *service) freeRefillInterval(ctx context.Context, customer *domain.Customer) int {
	if customer.ShopDetails != nil && customer.ShopDetails.FreeRefillInterval > 0 {
		return customer.ShopDetails.FreeRefillInterval
	}
	shops, _ := s.shops.Get(ctx)
	for _, shop := range shops {
		if shop.ID == customer.Shop {
			return shop.FreeRefillInterval
		}
	}
	return 0
}
