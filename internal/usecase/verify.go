package usecase

import (
	"context"
	"fmt"

	drepo "TradeSynth/internal/domain/repository"
	"TradeSynth/internal/repository"
)

// VerifyReport describes a dataset that passed verification.
type VerifyReport struct {
	RunID      string
	RowGroups  int
	Rows       int64
	BarsPerDay int
	MinDayID   int64
	MaxDayID   int64
}

// VerifyDataset reads every row group (checksums are verified by the reader)
// and checks that each holds one whole day: BarsPerDay rows, a single day_id
// not seen before, and times 0..n-1.
func VerifyDataset(ctx context.Context, r drepo.RowGroupReader) (VerifyReport, error) {
	meta, err := repository.ParseDatasetMeta(r.Metadata())
	if err != nil {
		return VerifyReport{}, err
	}
	rep := VerifyReport{
		RunID:      meta.RunID,
		RowGroups:  r.NumRowGroups(),
		BarsPerDay: meta.BarsPerDay(),
	}
	seen := make(map[int64]int, rep.RowGroups)
	for i := range rep.RowGroups {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		g, err := r.ReadRowGroup(i)
		if err != nil {
			return rep, stageErr(StageVerify, int64(i), err)
		}
		if g.NumRows() != rep.BarsPerDay {
			return rep, stageErr(StageVerify, int64(i),
				fmt.Errorf("row group has %d rows, want %d", g.NumRows(), rep.BarsPerDay))
		}
		ids, err := g.Int64(repository.ColDayID)
		if err != nil {
			return rep, stageErr(StageVerify, int64(i), err)
		}
		times, err := g.Int32(repository.ColTime)
		if err != nil {
			return rep, stageErr(StageVerify, int64(i), err)
		}
		if len(ids) == 0 {
			continue
		}
		id := ids[0]
		for k := range ids {
			if ids[k] != id {
				return rep, stageErr(StageVerify, int64(i), fmt.Errorf("mixed day ids %d and %d", id, ids[k]))
			}
			if int(times[k]) != k {
				return rep, stageErr(StageVerify, int64(i), fmt.Errorf("row %d has time %d", k, times[k]))
			}
		}
		if prev, dup := seen[id]; dup {
			return rep, stageErr(StageVerify, int64(i), fmt.Errorf("day %d already in row group %d", id, prev))
		}
		seen[id] = i
		if len(seen) == 1 || id < rep.MinDayID {
			rep.MinDayID = id
		}
		if len(seen) == 1 || id > rep.MaxDayID {
			rep.MaxDayID = id
		}
		rep.Rows += int64(g.NumRows())
	}
	return rep, nil
}
