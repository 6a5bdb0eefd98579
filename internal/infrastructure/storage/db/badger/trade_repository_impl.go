package dbbadger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v3"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"

	"github.com/chainswap/chainswap-daemon/internal/core/domain"
	"github.com/chainswap/chainswap-daemon/pkg/chain"
)

// tradeRow is the persisted shape of a trade: the opaque serialized record
// plus the filtering columns denormalized out of the blob so status and
// paging queries stay indexed instead of deserializing every record.
type tradeRow struct {
	TradeID           string
	Status            int `badgerholdIndex:"Status"`
	ConfirmedAtHeight uint32
	CreatedAtTime     uint64
	Sent              uint32
	IsMyOffer         bool
	Record            []byte
}

// coinOfInterestRow is one entry of the secondary index mapping watched
// coins to the trades that care about them.
type coinOfInterestRow struct {
	Key     string
	CoinID  string `badgerholdIndex:"CoinID"`
	TradeID string `badgerholdIndex:"TradeID"`
}

func coinOfInterestKey(coinID, tradeID string) string {
	return coinID + ":" + tradeID
}

type tradeRepositoryImpl struct {
	db *DbManager
}

// NewTradeRepositoryImpl returns a badger-backed domain.TradeRepository.
func NewTradeRepositoryImpl(db *DbManager) domain.TradeRepository {
	return tradeRepositoryImpl{db: db}
}

func (t tradeRepositoryImpl) AddTradeRecord(
	ctx context.Context, record *domain.TradeRecord,
) error {
	row, err := rowFromRecord(record)
	if err != nil {
		return err
	}

	err = t.db.Store.Badger().Update(func(tx *badger.Txn) error {
		if err := t.db.Store.TxUpsert(tx, row.TradeID, row); err != nil {
			return err
		}
		// Replace the trade's index rows atomically so stale coin
		// associations never survive a re-store.
		if err := t.db.Store.TxDeleteMatching(
			tx, &coinOfInterestRow{},
			badgerhold.Where("TradeID").Eq(row.TradeID).Index("TradeID"),
		); err != nil {
			return err
		}
		for _, coinID := range record.CoinIDsOfInterest() {
			indexRow := coinOfInterestRow{
				Key:     coinOfInterestKey(coinID.Hex(), row.TradeID),
				CoinID:  coinID.Hex(),
				TradeID: row.TradeID,
			}
			if err := t.db.Store.TxUpsert(tx, indexRow.Key, indexRow); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("trade_id", record.TradeID.Hex()).
			Error("failed to store trade record")
		return fmt.Errorf("storing trade %s: %w", record.TradeID.Hex(), err)
	}
	return nil
}

func (t tradeRepositoryImpl) GetTradeRecord(
	ctx context.Context, tradeID chain.Bytes32,
) (*domain.TradeRecord, error) {
	var row tradeRow
	if err := t.db.Store.Get(tradeID.Hex(), &row); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrTradeNotFound
		}
		return nil, err
	}
	return recordFromRow(row)
}

func (t tradeRepositoryImpl) GetTradeRecordsByCoinID(
	ctx context.Context, coinID chain.Bytes32,
) ([]*domain.TradeRecord, error) {
	var indexRows []coinOfInterestRow
	if err := t.db.Store.Find(
		&indexRows,
		badgerhold.Where("CoinID").Eq(coinID.Hex()).Index("CoinID"),
	); err != nil {
		return nil, err
	}

	records := make([]*domain.TradeRecord, 0, len(indexRows))
	for _, ir := range indexRows {
		var row tradeRow
		if err := t.db.Store.Get(ir.TradeID, &row); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				continue
			}
			return nil, err
		}
		record, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (t tradeRepositoryImpl) CoinIDsOfInterest(
	ctx context.Context, statuses []domain.TradeStatus,
) ([]chain.Bytes32, error) {
	rows, err := t.findRowsByStatus(statuses)
	if err != nil {
		return nil, err
	}
	tradeIDs := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		tradeIDs = append(tradeIDs, row.TradeID)
	}
	if len(tradeIDs) == 0 {
		return nil, nil
	}

	var indexRows []coinOfInterestRow
	if err := t.db.Store.Find(
		&indexRows,
		badgerhold.Where("TradeID").In(tradeIDs...).Index("TradeID"),
	); err != nil {
		return nil, err
	}

	seen := make(map[chain.Bytes32]struct{}, len(indexRows))
	out := make([]chain.Bytes32, 0, len(indexRows))
	for _, ir := range indexRows {
		coinID, err := chain.Bytes32FromHex(ir.CoinID)
		if err != nil {
			return nil, fmt.Errorf("corrupt coin index row %q: %w", ir.Key, err)
		}
		if _, ok := seen[coinID]; ok {
			continue
		}
		seen[coinID] = struct{}{}
		out = append(out, coinID)
	}
	return out, nil
}

func (t tradeRepositoryImpl) GetTradesBetween(
	ctx context.Context, query domain.TradesBetweenQuery,
) ([]*domain.TradeRecord, error) {
	var rows []tradeRow
	if err := t.db.Store.Find(&rows, tradesBetweenQuery(query)); err != nil {
		return nil, err
	}

	records := make([]*domain.TradeRecord, 0, len(rows))
	for _, row := range rows {
		record, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	switch query.SortKey {
	case domain.SortByRelevance:
		sort.SliceStable(records, func(i, j int) bool {
			ri, rj := records[i], records[j]
			if ri.Status.IsTerminal() != rj.Status.IsTerminal() {
				return !ri.Status.IsTerminal()
			}
			return chronologicallyBefore(ri, rj)
		})
	default:
		sort.SliceStable(records, func(i, j int) bool {
			return chronologicallyBefore(records[i], records[j])
		})
	}

	start, end := query.Start, query.End
	if start < 0 {
		start = 0
	}
	if end <= 0 || end > len(records) {
		end = len(records)
	}
	if start >= end {
		return nil, nil
	}
	return records[start:end], nil
}

// tradesBetweenQuery translates the filter flags into a query over the
// denormalized row columns, keeping the status split on its index. A nil
// query matches every row.
func tradesBetweenQuery(query domain.TradesBetweenQuery) *badgerhold.Query {
	var q *badgerhold.Query
	if !query.IncludeTerminal {
		statuses := domain.NonTerminalStatuses()
		values := make([]interface{}, 0, len(statuses))
		for _, s := range statuses {
			values = append(values, int(s))
		}
		q = badgerhold.Where("Status").In(values...).Index("Status")
	}
	if query.ExcludeMyOffers {
		q = andWhere(q, "IsMyOffer").Eq(false)
	}
	if query.ExcludeTaken {
		q = andWhere(q, "IsMyOffer").Eq(true)
	}
	return q
}

func andWhere(q *badgerhold.Query, field string) *badgerhold.Criterion {
	if q == nil {
		return badgerhold.Where(field)
	}
	return q.And(field)
}

func chronologicallyBefore(a, b *domain.TradeRecord) bool {
	if a.ConfirmedAtHeight != b.ConfirmedAtHeight {
		return a.ConfirmedAtHeight > b.ConfirmedAtHeight
	}
	return a.CreatedAtTime > b.CreatedAtTime
}

func (t tradeRepositoryImpl) SetStatus(
	ctx context.Context,
	tradeID chain.Bytes32,
	status domain.TradeStatus,
	confirmedAtHeight uint32,
) error {
	return t.updateTradeRecord(ctx, tradeID, func(record *domain.TradeRecord) error {
		record.Status = status
		if confirmedAtHeight > 0 {
			record.ConfirmedAtHeight = confirmedAtHeight
		}
		return nil
	})
}

func (t tradeRepositoryImpl) IncrementSent(
	ctx context.Context, tradeID chain.Bytes32, peer domain.SentPeer,
) error {
	return t.updateTradeRecord(ctx, tradeID, func(record *domain.TradeRecord) error {
		record.Sent++
		record.SentTo = append(record.SentTo, peer)
		return nil
	})
}

func (t tradeRepositoryImpl) GetAllUnconfirmed(
	ctx context.Context,
) ([]*domain.TradeRecord, error) {
	rows, err := t.findRowsByStatus(domain.NonTerminalStatuses())
	if err != nil {
		return nil, err
	}
	records := make([]*domain.TradeRecord, 0, len(rows))
	for _, row := range rows {
		record, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (t tradeRepositoryImpl) MigrateIsMyOffer(
	ctx context.Context, decide func(*domain.TradeRecord) bool,
) error {
	var rows []tradeRow
	if err := t.db.Store.Find(&rows, nil); err != nil {
		return err
	}
	for _, row := range rows {
		record, err := recordFromRow(row)
		if err != nil {
			return err
		}
		record.IsMyOffer = decide(record)
		if err := t.AddTradeRecord(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (t tradeRepositoryImpl) MigrateCoinIndex(ctx context.Context) error {
	if err := t.db.Store.DeleteMatching(&coinOfInterestRow{}, nil); err != nil {
		return err
	}
	var rows []tradeRow
	if err := t.db.Store.Find(&rows, nil); err != nil {
		return err
	}
	for _, row := range rows {
		record, err := recordFromRow(row)
		if err != nil {
			return err
		}
		if err := t.AddTradeRecord(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// updateTradeRecord is the read-modify-write used by every partial update:
// the whole record is decoded, mutated and re-stored.
func (t tradeRepositoryImpl) updateTradeRecord(
	ctx context.Context,
	tradeID chain.Bytes32,
	updateFn func(*domain.TradeRecord) error,
) error {
	record, err := t.GetTradeRecord(ctx, tradeID)
	if err != nil {
		return err
	}
	if err := updateFn(record); err != nil {
		return err
	}
	return t.AddTradeRecord(ctx, record)
}

func (t tradeRepositoryImpl) findRowsByStatus(
	statuses []domain.TradeStatus,
) ([]tradeRow, error) {
	values := make([]interface{}, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, int(s))
	}
	var rows []tradeRow
	if err := t.db.Store.Find(
		&rows, badgerhold.Where("Status").In(values...).Index("Status"),
	); err != nil {
		return nil, err
	}
	return rows, nil
}

func rowFromRecord(record *domain.TradeRecord) (tradeRow, error) {
	blob, err := json.Marshal(record)
	if err != nil {
		return tradeRow{}, fmt.Errorf("serializing trade record: %w", err)
	}
	return tradeRow{
		TradeID:           record.TradeID.Hex(),
		Status:            int(record.Status),
		ConfirmedAtHeight: record.ConfirmedAtHeight,
		CreatedAtTime:     record.CreatedAtTime,
		Sent:              record.Sent,
		IsMyOffer:         record.IsMyOffer,
		Record:            blob,
	}, nil
}

func recordFromRow(row tradeRow) (*domain.TradeRecord, error) {
	record := &domain.TradeRecord{}
	if err := json.Unmarshal(row.Record, record); err != nil {
		return nil, fmt.Errorf("corrupt trade record %s: %w", row.TradeID, err)
	}
	return record, nil
}
