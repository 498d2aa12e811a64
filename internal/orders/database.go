package orders

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dotpix/dotpix-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateOrder(order *types.Order) error {
	return d.db.Create(order).Error
}

// DeleteOrder removes an order record. Used only as the compensating action
// when escrow creation fails after the local insert.
func (d *Database) DeleteOrder(order *types.Order) error {
	return d.db.Delete(order).Error
}

func (d *Database) GetOrderByRef(orderRef string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("order_ref = ?", orderRef).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListActiveOrders returns PENDING orders that have not expired, newest first.
func (d *Database) ListActiveOrders(typeFilter *types.OrderType, now time.Time) ([]types.Order, error) {
	query := d.db.Where("status = ? AND expires_at > ?", types.StatusPending, now)
	if typeFilter != nil {
		query = query.Where("order_type = ?", *typeFilter)
	}

	var orders []types.Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) ListOrdersForUser(userID uint) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// CountOrdersToday counts orders of one type a user created since the window
// start, for the per-day ceiling check.
func (d *Database) CountOrdersToday(userID uint, orderType types.OrderType, since time.Time) (int, error) {
	var count int64
	err := d.db.Model(&types.Order{}).
		Where("user_id = ? AND order_type = ? AND created_at >= ?", userID, orderType, since).
		Count(&count).Error
	return int(count), err
}

// AttachChainRefs records the escrow creation outcome on a fresh order along
// with its audit row, in one transaction.
func (d *Database) AttachChainRefs(order *types.Order, chainOrderID uint64, txHash string, blockNumber uint64) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		order.ChainOrderID = &chainOrderID
		order.LastTxHash = txHash
		if err := tx.Save(order).Error; err != nil {
			return err
		}
		return tx.Create(&types.Transaction{
			OrderID:     order.ID,
			TxHash:      txHash,
			TxType:      types.TxTypeEscrow,
			BlockNumber: blockNumber,
		}).Error
	})
}

// CommitTransition atomically flips an order to its next status. The update
// is guarded on the expected current status; zero affected rows means a
// concurrent transition won and is reported as ErrConcurrentUpdate. The audit
// row and any extra writes (participant stats) commit in the same
// transaction, and the order is reloaded on success.
func (d *Database) CommitTransition(
	order *types.Order,
	expected types.OrderStatus,
	updates map[string]interface{},
	audit *types.Transaction,
	extra func(tx *gorm.DB) error,
) error {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&types.Order{}).
			Where("id = ? AND status = ?", order.ID, expected).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}

		if audit != nil {
			audit.OrderID = order.ID
			if err := tx.Create(audit).Error; err != nil {
				return err
			}
		}

		if extra != nil {
			if err := extra(tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return d.db.First(order, order.ID).Error
}

func (d *Database) ListTransactions(orderID uint) ([]types.Transaction, error) {
	var txs []types.Transaction
	err := d.db.Where("order_id = ?", orderID).Order("created_at ASC").Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (d *Database) GetUserByWallet(wallet string) (*types.User, error) {
	var user types.User
	if err := d.db.Where("wallet_address = ?", wallet).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (d *Database) GetLPByID(id uint) (*types.LiquidityProvider, error) {
	var lp types.LiquidityProvider
	if err := d.db.First(&lp, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lp, nil
}

func (d *Database) GetLPByUserID(userID uint) (*types.LiquidityProvider, error) {
	var lp types.LiquidityProvider
	if err := d.db.Where("user_id = ?", userID).First(&lp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lp, nil
}
