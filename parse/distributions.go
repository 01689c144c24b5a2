package parse

import (
	"io"
	"sort"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"skedge.dev/csa/model"
	"skedge.dev/csa/storage"
)

type DistributionPointCSV struct {
	DistributionID int     `csv:"distribution_id"`
	DelayMin       int     `csv:"delay_min"`
	Proba          float64 `csv:"proba"`
}

// ParseDistributions assembles the delay distribution catalogue from
// long-format rows (one probability point per row) and writes each
// distribution to the writer.
func ParseDistributions(writer storage.TimetableWriter, data io.Reader) error {
	times := map[int][]int{}
	probas := map[int][]float64{}

	i := 0
	err := gocsv.UnmarshalToCallbackWithError(data, func(row *DistributionPointCSV) error {
		i += 1
		if row.DelayMin < 0 {
			return errors.Errorf("negative delay (row %d)", i)
		}
		if row.Proba < 0 || row.Proba > 1 {
			return errors.Errorf("probability out of range (row %d)", i)
		}

		times[row.DistributionID] = append(times[row.DistributionID], row.DelayMin)
		probas[row.DistributionID] = append(probas[row.DistributionID], row.Proba)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "unmarshaling distributions csv")
	}

	ids := make([]int, 0, len(times))
	for id := range times {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		total := 0.0
		for _, p := range probas[id] {
			total += p
		}
		if total > 1+1e-9 {
			return errors.Errorf("probabilities of distribution %d sum to %f", id, total)
		}

		d, err := model.NewDistribution(id, times[id], probas[id])
		if err != nil {
			return errors.Wrapf(err, "building distribution %d", id)
		}

		err = writer.WriteDistribution(d)
		if err != nil {
			return errors.Wrapf(err, "writing distribution %d", id)
		}
	}

	return nil
}
