// Package validation содержит проверки пользовательского ввода API.
package validation

import (
	"math"
	"net/url"
	"strings"

	"github.com/mmeshcher/marketplace/internal/model"
)

// MaxImages — максимальное число изображений в заявке или предложении.
const MaxImages = 10

// IsValidLocation проверяет, что координаты лежат в допустимых границах.
func IsValidLocation(l model.Location) bool {
	if math.IsNaN(l.Latitude) || math.IsNaN(l.Longitude) {
		return false
	}
	return l.Latitude >= -90 && l.Latitude <= 90 &&
		l.Longitude >= -180 && l.Longitude <= 180
}

// IsValidImages проверяет, что изображений не больше MaxImages и каждое задано абсолютным http(s) URL.
func IsValidImages(images []string) bool {
	if len(images) > MaxImages {
		return false
	}
	for _, img := range images {
		u, err := url.Parse(img)
		if err != nil || u.Host == "" {
			return false
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return false
		}
	}
	return true
}

// IsValidInstrument сообщает, поддерживается ли способ оплаты.
func IsValidInstrument(i model.Instrument) bool {
	return i == model.InstrumentNative || i == model.InstrumentToken
}

// IsBlank сообщает, что строка пуста или состоит из пробелов.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
