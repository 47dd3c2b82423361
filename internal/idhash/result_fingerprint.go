package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"strategy-lab/internal/domain"
)

// ResultFingerprint hashes the trade and snapshot sequences of a run.
// Two runs fingerprint equal only if every trade and snapshot field is
// bit-identical and in the same order. Run ids and wall-clock times are excluded.
func ResultFingerprint(trades []domain.SimulatedTrade, snapshots []domain.PortfolioSnapshot) string {
	h := sha256.New()

	for _, t := range trades {
		fmt.Fprintf(h, "T|%d|%s|%s|%s|%s|%s\n",
			t.Timestamp, t.Pair, t.Side, formatFloat(t.AmountEur), formatFloat(t.Price), t.Reason)
	}
	for _, s := range snapshots {
		fmt.Fprintf(h, "S|%d|%s|%s|%s\n",
			s.Timestamp, formatFloat(s.TotalValueEur), formatMap(s.Balances), formatMap(s.Weights))
	}

	return hex.EncodeToString(h.Sum(nil))
}

func formatMap(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += k + "=" + formatFloat(m[k])
	}
	return out
}
