package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"strategy-lab/internal/domain"
)

// ParamsID computes a deterministic id for a parameter set using SHA256.
// Formula: SHA256(max_trade|stop_loss|cooldown|oversold|overbought|pair=weight,...)
// with weights in sorted pair order. Returns hex-encoded hash (64 characters).
func ParamsID(p domain.StrategyParams) string {
	pairs := p.Pairs()
	weights := make([]string, len(pairs))
	for i, pair := range pairs {
		weights[i] = pair + "=" + formatFloat(p.BaseWeights[pair])
	}

	data := fmt.Sprintf("%s|%s|%d|%s|%s|%s",
		formatFloat(p.MaxTradePercent),
		formatFloat(p.StopLossPercent),
		p.CooldownMinutes,
		formatFloat(p.RSIOversoldThreshold),
		formatFloat(p.RSIOverboughtThreshold),
		strings.Join(weights, ","),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ShortID returns the first 12 characters of an id, for labels and logs.
func ShortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}

// formatFloat renders the shortest representation that round-trips.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
