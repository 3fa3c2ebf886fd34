// Package bootstrap builds the location services from configuration. It is
// shared by the api, enricher and backfill binaries.
package bootstrap

import (
	"github.com/samirrijal/casahunt/internal/adapters/geocodeapi"
	"github.com/samirrijal/casahunt/internal/adapters/memcache"
	"github.com/samirrijal/casahunt/internal/adapters/nominatim"
	"github.com/samirrijal/casahunt/internal/adapters/overpass"
	"github.com/samirrijal/casahunt/internal/adapters/valkey"
	"github.com/samirrijal/casahunt/internal/core/domain"
	"github.com/samirrijal/casahunt/internal/core/ports"
	"github.com/samirrijal/casahunt/internal/core/usecases"
	"github.com/samirrijal/casahunt/internal/pkg/config"
)

// NewGeocoder returns the provider selected by cfg.Provider.
func NewGeocoder(cfg config.GeocodingConfig) ports.Geocoder {
	if cfg.Provider == "remote" {
		return geocodeapi.New(cfg.BaseURL, cfg.Timeout)
	}
	return nominatim.New(nominatim.Config{
		BaseURL:       cfg.BaseURL,
		UserAgent:     cfg.UserAgent,
		Timeout:       cfg.Timeout,
		RatePerSecond: cfg.RatePerSecond,
		CountryCodes:  cfg.CountryCodes,
	})
}

// NewGeocodeCache returns the in-process cache, fronting shared when it is
// non-nil.
func NewGeocodeCache(cfg config.GeocodingConfig, shared *valkey.Cache) ports.GeocodeCache {
	local := memcache.NewGeocodeCache(memcache.Options{
		Capacity:    cfg.CacheSize,
		TTL:         cfg.CacheTTL,
		NegativeTTL: cfg.NegativeTTL,
	})
	if shared == nil {
		return local
	}
	return memcache.NewTiered(local, shared, cfg.SharedTTL)
}

// NewGeocodeService wires provider and cache into a GeocodeService.
func NewGeocodeService(cfg config.GeocodingConfig, shared *valkey.Cache) *usecases.GeocodeService {
	return usecases.NewGeocodeService(NewGeocoder(cfg), NewGeocodeCache(cfg, shared), cfg.Timeout)
}

// NewTransitService wires the Overpass client into a TransitService.
func NewTransitService(cfg config.TransitConfig, userAgent string) *usecases.TransitService {
	provider := overpass.New(cfg.OverpassURL, userAgent, cfg.Timeout)
	center := domain.Point{
		Name:      cfg.DefaultCenter,
		Latitude:  cfg.DefaultLat,
		Longitude: cfg.DefaultLon,
	}
	return usecases.NewTransitService(provider, nil, center)
}
