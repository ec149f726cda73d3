package services

import (
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"reservation-system/internal/dto"
	"reservation-system/internal/entities"
	"reservation-system/internal/lifecycle"
	apperrors "reservation-system/pkg/errors"
)

const (
	userAna   uint64 = 1
	userBruno uint64 = 2
	userCarla uint64 = 3
	userSuper uint64 = 10
)

type ReservationSuite struct {
	suite.Suite
	env *testEnv
	eq  uint64
}

func (s *ReservationSuite) SetupTest() {
	s.env = newTestEnv()
	s.env.store.addUser(userAna, "Ana Pérez", roleManager)
	s.env.store.addUser(userBruno, "Bruno Díaz", roleManager)
	s.env.store.addUser(userCarla, "Carla Mora", roleManager)
	s.env.store.addUser(userSuper, "Sofía Vera", roleSupervisor)
	s.eq = s.env.store.addEquipment(entities.Equipment{Name: "CAT 320D"})
}

func TestReservationSuite(t *testing.T) {
	suite.Run(t, new(ReservationSuite))
}

func (s *ReservationSuite) request(actor uint64, client string) *dto.ReservationResultDTO {
	d := dto.CreateReservationDTO{}
	if client != "" {
		d.Client = null.StringFrom(client)
	}
	res, err := s.env.reservations.RequestReservation(s.env.as(actor, roleManager), s.eq, d)
	s.Require().NoError(err)
	return res
}

func (s *ReservationSuite) checklist(actor, reservationID uint64, deposit, tenPercent, documents bool) *dto.ReservationResultDTO {
	res, err := s.env.reservations.UpdateChecklist(s.env.as(actor, roleManager), reservationID, dto.UpdateChecklistDTO{
		DepositConfirmed: null.BoolFrom(deposit),
		TenPercentPaid:   null.BoolFrom(tenPercent),
		DocumentsSigned:  null.BoolFrom(documents),
	})
	s.Require().NoError(err)
	return res
}

func (s *ReservationSuite) assertGuard(err error, rule string) {
	s.Require().Error(err)
	var guard *apperrors.GuardError
	s.Require().ErrorAs(err, &guard)
	s.Equal(rule, guard.Rule)
}

func (s *ReservationSuite) TestFullLifecycle_RequestChecklistApprove() {
	r1 := s.request(userAna, "Constructora Andes")

	eq := s.env.store.eq(s.eq)
	s.Equal(lifecycle.StatePreReserved, eq.State)
	s.Equal("Constructora Andes", *eq.Client)
	s.Equal("Ana Pérez", *eq.Advisor)
	s.Nil(eq.DeadlineDate)
	s.Equal(1, r1.Reservation.QueuePosition)
	s.Equal("PENDING", r1.Reservation.Status)

	s.checklist(userAna, r1.Reservation.ID, true, false, false)
	eq = s.env.store.eq(s.eq)
	s.Equal(lifecycle.StateReserved, eq.State)
	s.Require().NotNil(eq.DeadlineDate)
	// Пн 10.03.2025 + 7 рабочих дней (суббота считается) = Вт 18.03.2025.
	s.Equal("2025-03-18", eq.DeadlineDate.Format(time.DateOnly))
	s.Require().NotNil(s.env.store.res(r1.Reservation.ID).FirstChecklistDate)

	s.checklist(userAna, r1.Reservation.ID, true, true, true)
	s.Equal(lifecycle.StateReserved, s.env.store.eq(s.eq).State)

	s.env.now = s.env.now.Add(48 * time.Hour)
	approved, err := s.env.reservations.Approve(s.env.as(userSuper, roleSupervisor), r1.Reservation.ID)
	s.Require().NoError(err)
	s.Equal("APPROVED", approved.Reservation.Status)

	eq = s.env.store.eq(s.eq)
	s.Equal(lifecycle.StateSeparated, eq.State)
	want := s.env.rules.Calendar.AddBusinessDays(s.env.today(), 59)
	s.Equal(want, *eq.DeadlineDate)
	s.False(eq.DeadlineModified)

	stored := s.env.store.res(r1.Reservation.ID)
	s.Equal(entities.ReservationApproved, stored.Status)
	s.Equal(userSuper, *stored.ApprovedBy)
	s.Equal(want, *stored.SnapshotDeadline)

	notified := s.env.store.notificationsOf(entities.NotificationReservationApproved)
	s.Len(notified, 2)
}

func (s *ReservationSuite) TestQueuedRequestPromotedAfterReject() {
	r1 := s.request(userAna, "Constructora Andes")
	r2 := s.request(userBruno, "")
	s.Equal(2, r2.Reservation.QueuePosition)
	s.Equal(lifecycle.StatePreReserved, s.env.store.eq(s.eq).State)
	s.Equal("Ana Pérez", *s.env.store.eq(s.eq).Advisor)

	_, err := s.env.reservations.Reject(s.env.as(userSuper, roleSupervisor), r1.Reservation.ID,
		dto.RejectReservationDTO{Reason: "cliente desistió"})
	s.Require().NoError(err)

	eq := s.env.store.eq(s.eq)
	s.Equal(lifecycle.StateReserved, eq.State)
	s.Nil(eq.Client)
	s.Equal("Bruno Díaz", *eq.Advisor)
	s.Equal(s.env.rules.Calendar.AddBusinessDays(s.env.today(), 7), *eq.DeadlineDate)

	s.Equal(entities.ReservationRejected, s.env.store.res(r1.Reservation.ID).Status)
	s.Equal("Constructora Andes", *s.env.store.res(r1.Reservation.ID).SnapshotClient)

	firstInLine := s.env.store.notificationsOf(entities.NotificationFirstInLine)
	s.Require().Len(firstInLine, 2)
	recipients := []uint64{firstInLine[0].RecipientID, firstInLine[1].RecipientID}
	s.ElementsMatch([]uint64{userBruno, userSuper}, recipients)

	// Продвинутая заявка теперь первая и может заполнять чек-лист.
	s.checklist(userBruno, r2.Reservation.ID, true, true, true)
}

func (s *ReservationSuite) TestRejectLastReservationReleasesUnit() {
	r1 := s.request(userAna, "Constructora Andes")
	s.checklist(userAna, r1.Reservation.ID, true, false, false)

	_, err := s.env.reservations.Reject(s.env.as(userAna, roleManager), r1.Reservation.ID,
		dto.RejectReservationDTO{Reason: "sin financiamiento"})
	s.Require().NoError(err)

	eq := s.env.store.eq(s.eq)
	s.Equal(lifecycle.StateFree, eq.State)
	s.Nil(eq.Client)
	s.Nil(eq.Advisor)
	s.Nil(eq.DeadlineDate)
	s.False(eq.DeadlineModified)

	cleared := map[string]bool{}
	for _, c := range s.env.store.changeLogFor(s.eq) {
		if c.Reason == entities.ChangeReasonRejected {
			s.Nil(c.NewValue)
			s.NotNil(c.OldValue)
			cleared[c.Field] = true
		}
	}
	s.Equal(map[string]bool{
		entities.FieldClient:       true,
		entities.FieldAdvisor:      true,
		entities.FieldDeadlineDate: true,
	}, cleared)

	s.Len(s.env.store.notificationsOf(entities.NotificationReservationRejected), 2)
	s.Len(s.env.store.notificationsOf(entities.NotificationEquipmentReleased), 1)
}

func (s *ReservationSuite) TestRejectApprovedReleasesSeparatedUnit() {
	r1 := s.request(userAna, "Constructora Andes")
	s.checklist(userAna, r1.Reservation.ID, true, true, true)
	_, err := s.env.reservations.Approve(s.env.as(userSuper, roleSupervisor), r1.Reservation.ID)
	s.Require().NoError(err)
	s.Equal(lifecycle.StateSeparated, s.env.store.eq(s.eq).State)

	_, err = s.env.reservations.Reject(s.env.as(userSuper, roleSupervisor), r1.Reservation.ID,
		dto.RejectReservationDTO{Reason: "crédito no aprobado"})
	s.Require().NoError(err)

	eq := s.env.store.eq(s.eq)
	s.Equal(lifecycle.StateFree, eq.State)
	s.Nil(eq.Client)
	s.Nil(eq.Advisor)
	s.Nil(eq.DeadlineDate)
	s.Equal(entities.ReservationRejected, s.env.store.res(r1.Reservation.ID).Status)

	released := s.env.store.notificationsOf(entities.NotificationEquipmentReleased)
	s.Require().Len(released, 1)
	s.Require().NotNil(released[0].ReferenceID)
	s.Equal(r1.Reservation.ID, *released[0].ReferenceID)

	// Освобождённая единица снова принимает заявки.
	r2 := s.request(userBruno, "Agrícola Sur")
	s.Equal(lifecycle.StatePreReserved, s.env.store.eq(s.eq).State)
	s.Equal(1, r2.Reservation.QueuePosition)
}

func (s *ReservationSuite) TestRejectQueuedReservationKeepsHolder() {
	r1 := s.request(userAna, "Constructora Andes")
	r2 := s.request(userBruno, "")
	before := s.env.store.eq(s.eq)

	_, err := s.env.reservations.Reject(s.env.as(userBruno, roleManager), r2.Reservation.ID,
		dto.RejectReservationDTO{Reason: "ya no lo necesito"})
	s.Require().NoError(err)

	s.Equal(before, s.env.store.eq(s.eq))
	s.Equal("Ana Pérez", *s.env.store.eq(s.eq).Advisor)
	s.Equal(entities.ReservationPending, s.env.store.res(r1.Reservation.ID).Status)
	s.Equal(entities.ReservationRejected, s.env.store.res(r2.Reservation.ID).Status)
	s.Empty(s.env.store.notificationsOf(entities.NotificationEquipmentReleased))
	s.Empty(s.env.store.notificationsOf(entities.NotificationFirstInLine))

	// Первая заявка по-прежнему ведёт чек-лист.
	s.checklist(userAna, r1.Reservation.ID, true, false, false)
	s.Equal(lifecycle.StateReserved, s.env.store.eq(s.eq).State)
}

func (s *ReservationSuite) TestApproveRejectsSiblings() {
	r1 := s.request(userAna, "Constructora Andes")
	r2 := s.request(userBruno, "")
	r3 := s.request(userCarla, "")
	s.checklist(userAna, r1.Reservation.ID, true, true, true)

	_, err := s.env.reservations.Approve(s.env.as(userSuper, roleSupervisor), r1.Reservation.ID)
	s.Require().NoError(err)

	approved := 0
	for _, id := range []uint64{r1.Reservation.ID, r2.Reservation.ID, r3.Reservation.ID} {
		r := s.env.store.res(id)
		if r.Status == entities.ReservationApproved {
			approved++
			continue
		}
		s.Equal(entities.ReservationRejected, r.Status)
		s.Equal(entities.ReasonAnotherApproved, *r.RejectionReason)
	}
	s.Equal(1, approved)

	// Одобренная единица не принимает новые заявки.
	_, err = s.env.reservations.RequestReservation(s.env.as(userBruno, roleManager), s.eq, dto.CreateReservationDTO{})
	s.assertGuard(err, RuleAlreadyApproved)
}

func (s *ReservationSuite) TestApproveGuards_NoMutation() {
	r1 := s.request(userAna, "Constructora Andes")
	s.checklist(userAna, r1.Reservation.ID, true, false, true)
	before := s.env.store.eq(s.eq)

	_, err := s.env.reservations.Approve(s.env.as(userSuper, roleSupervisor), r1.Reservation.ID)
	s.assertGuard(err, RuleChecklistIncomplete)
	var guard *apperrors.GuardError
	s.Require().ErrorAs(err, &guard)
	s.Equal([]string{"ten_percent_paid"}, guard.Details["missing"])
	s.Equal(before, s.env.store.eq(s.eq))
	s.Equal(entities.ReservationPending, s.env.store.res(r1.Reservation.ID).Status)

	s.checklist(userAna, r1.Reservation.ID, true, true, true)
	s.env.now = s.env.now.AddDate(0, 0, 8)
	_, err = s.env.reservations.Approve(s.env.as(userSuper, roleSupervisor), r1.Reservation.ID)
	s.assertGuard(err, RuleApprovalWindowExpired)
	s.Equal(lifecycle.StateReserved, s.env.store.eq(s.eq).State)

	// Ровно 7 календарных дней ещё допустимо.
	s.env.now = fixedNow.AddDate(0, 0, 7)
	_, err = s.env.reservations.Approve(s.env.as(userSuper, roleSupervisor), r1.Reservation.ID)
	s.Require().NoError(err)
}

func (s *ReservationSuite) TestApproveRequiresOversightRole() {
	r1 := s.request(userAna, "Constructora Andes")
	s.checklist(userAna, r1.Reservation.ID, true, true, true)

	_, err := s.env.reservations.Approve(s.env.as(userAna, roleManager), r1.Reservation.ID)
	s.ErrorIs(err, apperrors.ErrForbidden)
}

func (s *ReservationSuite) TestApprovePreReservedIsTransitionGuard() {
	r1 := s.request(userAna, "Constructora Andes")

	_, err := s.env.reservations.Approve(s.env.as(userSuper, roleSupervisor), r1.Reservation.ID)
	s.Require().Error(err)
	s.True(apperrors.IsGuard(err))
	s.Equal(lifecycle.StatePreReserved, s.env.store.eq(s.eq).State)
}

func (s *ReservationSuite) TestDuplicateRequestIsGuard() {
	s.request(userAna, "Constructora Andes")

	_, err := s.env.reservations.RequestReservation(s.env.as(userAna, roleManager), s.eq,
		dto.CreateReservationDTO{Client: null.StringFrom("Otro")})
	s.assertGuard(err, RuleDuplicateRequest)
}

func (s *ReservationSuite) TestFreeUnitRequiresClient() {
	_, err := s.env.reservations.RequestReservation(s.env.as(userAna, roleManager), s.eq, dto.CreateReservationDTO{})
	var invalid *apperrors.InvalidInputError
	s.ErrorAs(err, &invalid)
	s.Equal(lifecycle.StateFree, s.env.store.eq(s.eq).State)
}

func (s *ReservationSuite) TestChecklistOnlyForQueueHead() {
	s.request(userAna, "Constructora Andes")
	r2 := s.request(userBruno, "")

	_, err := s.env.reservations.UpdateChecklist(s.env.as(userBruno, roleManager), r2.Reservation.ID,
		dto.UpdateChecklistDTO{DepositConfirmed: null.BoolFrom(true)})
	s.assertGuard(err, RuleNotQueueHead)
}

func (s *ReservationSuite) TestChecklistFillsClientAfterPromotion() {
	r1 := s.request(userAna, "Constructora Andes")
	r2 := s.request(userBruno, "")
	_, err := s.env.reservations.Reject(s.env.as(userSuper, roleSupervisor), r1.Reservation.ID,
		dto.RejectReservationDTO{Reason: "duplicado"})
	s.Require().NoError(err)

	_, err = s.env.reservations.UpdateChecklist(s.env.as(userBruno, roleManager), r2.Reservation.ID,
		dto.UpdateChecklistDTO{Client: null.StringFrom("Agrícola Sur")})
	s.Require().NoError(err)
	s.Equal("Agrícola Sur", *s.env.store.eq(s.eq).Client)
}

func (s *ReservationSuite) TestRejectForeignReservationForbidden() {
	r1 := s.request(userAna, "Constructora Andes")

	_, err := s.env.reservations.Reject(s.env.as(userBruno, roleManager), r1.Reservation.ID,
		dto.RejectReservationDTO{Reason: "no"})
	s.ErrorIs(err, apperrors.ErrForbidden)
}

func (s *ReservationSuite) TestRejectClosedReservationIsGuard() {
	r1 := s.request(userAna, "Constructora Andes")
	_, err := s.env.reservations.Reject(s.env.as(userAna, roleManager), r1.Reservation.ID,
		dto.RejectReservationDTO{Reason: "cambio de planes"})
	s.Require().NoError(err)

	_, err = s.env.reservations.Reject(s.env.as(userAna, roleManager), r1.Reservation.ID,
		dto.RejectReservationDTO{Reason: "otra vez"})
	s.assertGuard(err, RuleReservationClosed)
}

func (s *ReservationSuite) TestNotificationFailureKeepsStateChange() {
	m := s.env.store
	notifier := &failingNotifier{}
	logger := zap.NewNop()
	promoter := NewQueuePromoter(fakeEquipmentRepo{m}, fakeReservationRepo{m}, fakeUserRepo{m}, fakeChangeLogRepo{m}, s.env.rules, logger)
	svc := NewReservationService(passTxManager{}, fakeEquipmentRepo{m}, fakeReservationRepo{m}, fakeUserRepo{m},
		fakeChangeLogRepo{m}, promoter, notifier, s.env.rules, logger)

	res, err := svc.RequestReservation(s.env.as(userAna, roleManager), s.eq,
		dto.CreateReservationDTO{Client: null.StringFrom("Constructora Andes")})
	s.Require().NoError(err)
	s.Equal(1, notifier.calls)
	s.Equal(lifecycle.StatePreReserved, m.eq(s.eq).State)
	s.Equal(entities.ReservationPending, m.res(res.Reservation.ID).Status)
}
