package services

import (
	"context"

	"github.com/joshua-takyi/repairhub/internal/models"
)

type AdminService struct {
	users    models.UserRepo
	techs    models.TechnicianRepo
	bookings models.BookingRepo
	catalog  models.ServiceRepo
}

func NewAdminService(users models.UserRepo, techs models.TechnicianRepo, bookings models.BookingRepo, catalog models.ServiceRepo) *AdminService {
	return &AdminService{users: users, techs: techs, bookings: bookings, catalog: catalog}
}

type DashboardStats struct {
	Users          int64                          `json:"users"`
	Technicians    int64                          `json:"technicians"`
	ActiveServices int64                          `json:"active_services"`
	Bookings       int64                          `json:"bookings"`
	ByStatus       map[models.BookingStatus]int64 `json:"bookings_by_status"`
	Revenue        float64                        `json:"revenue"`
}

func (as *AdminService) Stats(ctx context.Context) (*DashboardStats, error) {
	users, err := as.users.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	techs, err := as.techs.CountTechnicians(ctx)
	if err != nil {
		return nil, err
	}
	active, err := as.catalog.CountActiveServices(ctx)
	if err != nil {
		return nil, err
	}
	bookings, err := as.bookings.GetBookingStats(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardStats{
		Users:          users,
		Technicians:    techs,
		ActiveServices: active,
		Bookings:       bookings.Total,
		ByStatus:       bookings.ByStatus,
		Revenue:        bookings.Revenue,
	}, nil
}
