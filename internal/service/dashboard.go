package service

import (
	"context"

	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/session"
	"golang.org/x/sync/errgroup"
)

// Stats 首页统计
type Stats struct {
	Devices   int64            `json:"devices"`
	ByStatus  map[string]int64 `json:"by_status"`
	Users     int64            `json:"users"`
	Admins    int64            `json:"admins"`
	Observers int64            `json:"observers"`
}

// DashboardService 首页统计
type DashboardService struct {
	devices  gateway.DeviceStore
	profiles gateway.ProfileStore
}

// NewDashboardService 创建统计服务
func NewDashboardService(gw *gateway.Gateway) *DashboardService {
	return &DashboardService{devices: gw.Devices, profiles: gw.Profiles}
}

// Stats 并发拉取设备与用户统计
func (s *DashboardService) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.devices.Count(gctx)
		st.Devices = n
		return err
	})
	g.Go(func() error {
		m, err := s.devices.CountByStatus(gctx)
		st.ByStatus = m
		return err
	})
	g.Go(func() error {
		profiles, err := s.profiles.List(gctx)
		if err != nil {
			return err
		}
		st.Users = int64(len(profiles))
		for _, p := range profiles {
			switch session.Role(p.Role) {
			case session.RoleAdmin:
				st.Admins++
			case session.RoleObserver:
				st.Observers++
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return st, nil
}
