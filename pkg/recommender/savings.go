package recommender

import (
	"math"

	"github.com/opscart/table-compression-advisor/pkg/models"
)

// CalculateSavings derives expected savings from the scheme's ratio
// bounds. Every figure comes from the compressed size, so
// CurrentBytes - CompressedBytes == SavedBytes holds exactly.
func CalculateSavings(sizeBytes int64, scheme models.Scheme) models.Savings {
	info := scheme.Info()
	return savingsForRatio(sizeBytes, info.RatioAvg, info.RatioMin, info.RatioMax)
}

func savingsForRatio(sizeBytes int64, avg, worst, best float64) models.Savings {
	compressed := compressedSize(sizeBytes, avg)
	s := models.Savings{
		CurrentBytes:    sizeBytes,
		CompressedBytes: compressed,
		SavedBytes:      sizeBytes - compressed,
		Ratio:           avg,
		MinSavedBytes:   sizeBytes - compressedSize(sizeBytes, worst),
		MaxSavedBytes:   sizeBytes - compressedSize(sizeBytes, best),
	}
	s.Percent = percentOf(s.SavedBytes, sizeBytes)
	s.MinPercent = percentOf(s.MinSavedBytes, sizeBytes)
	s.MaxPercent = percentOf(s.MaxSavedBytes, sizeBytes)
	return s
}

func compressedSize(sizeBytes int64, ratio float64) int64 {
	if ratio <= 1 {
		return sizeBytes
	}
	return int64(math.Round(float64(sizeBytes) / ratio))
}

func percentOf(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}
