package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/carelink-health/carelink/pkg/logging"
)

const doctorDateIndex = "doctor-date-index"

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoBooker implements Booker on DynamoDB. The claim and the appointment
// insert ride one TransactWriteItems call so multiple process instances can
// race on a slot and exactly one wins; losers see a conditional-check
// failure mapped to ErrSlotTaken.
type DynamoBooker struct {
	client            dynamoAPI
	schedulesTable    string
	appointmentsTable string
	clock             func() time.Time
	logger            *logging.Logger
}

// NewDynamoBooker builds a booker over the provided DynamoDB client.
func NewDynamoBooker(client dynamoAPI, schedulesTable, appointmentsTable string, logger *logging.Logger) *DynamoBooker {
	if client == nil {
		panic("scheduling: dynamodb client cannot be nil")
	}
	if schedulesTable == "" || appointmentsTable == "" {
		panic("scheduling: table names cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoBooker{
		client:            client,
		schedulesTable:    schedulesTable,
		appointmentsTable: appointmentsTable,
		clock:             time.Now,
		logger:            logger,
	}
}

// FindOpenSlots queries the doctor-date index and flattens free slots.
func (b *DynamoBooker) FindOpenSlots(ctx context.Context, doctorID, date string) ([]SlotRef, error) {
	keyCondition := "doctorId = :doctor"
	values := map[string]types.AttributeValue{
		":doctor": &types.AttributeValueMemberS{Value: doctorID},
	}
	if date != "" {
		keyCondition += " AND #d = :date"
		values[":date"] = &types.AttributeValueMemberS{Value: date}
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(b.schedulesTable),
		IndexName:                 aws.String(doctorDateIndex),
		KeyConditionExpression:    aws.String(keyCondition),
		ExpressionAttributeValues: values,
	}
	if date != "" {
		input.ExpressionAttributeNames = map[string]string{"#d": "date"}
	}

	out, err := b.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("scheduling: query schedules: %w", err)
	}

	var slots []SlotRef
	for _, item := range out.Items {
		var schedule Schedule
		if err := attributevalue.UnmarshalMap(item, &schedule); err != nil {
			b.logger.Warn("skipping undecodable schedule", "error", err)
			continue
		}
		for _, slot := range schedule.Slots {
			if slot.IsBooked {
				continue
			}
			slots = append(slots, SlotRef{
				ScheduleID: schedule.ID,
				TimeSlotID: slot.ID,
				DoctorID:   schedule.DoctorID,
				DoctorName: schedule.DoctorName,
				Date:       schedule.Date,
				Time:       slot.Start,
			})
		}
	}
	return slots, nil
}

// GetSchedule loads one schedule document.
func (b *DynamoBooker) GetSchedule(ctx context.Context, scheduleID string) (Schedule, error) {
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(b.schedulesTable),
		Key: map[string]types.AttributeValue{
			"scheduleId": &types.AttributeValueMemberS{Value: scheduleID},
		},
	})
	if err != nil {
		return Schedule{}, fmt.Errorf("scheduling: fetch schedule: %w", err)
	}
	if out.Item == nil {
		return Schedule{}, ErrScheduleNotFound
	}
	var schedule Schedule
	if err := attributevalue.UnmarshalMap(out.Item, &schedule); err != nil {
		return Schedule{}, fmt.Errorf("scheduling: decode schedule: %w", err)
	}
	return schedule, nil
}

// Book loads the schedule for friendly validation, then commits the claim
// and the appointment atomically. The transaction's condition on isBooked is
// the real race guard; the pre-read only improves error messages.
func (b *DynamoBooker) Book(ctx context.Context, userID, scheduleID, timeSlotID string) (Appointment, error) {
	schedule, err := b.GetSchedule(ctx, scheduleID)
	if err != nil {
		return Appointment{}, err
	}

	slotIndex := -1
	for i, slot := range schedule.Slots {
		if slot.ID == timeSlotID {
			slotIndex = i
			break
		}
	}
	if slotIndex < 0 {
		return Appointment{}, ErrSlotNotFound
	}
	if schedule.Slots[slotIndex].IsBooked {
		return Appointment{}, ErrSlotTaken
	}

	appt := Appointment{
		ID:          uuid.NewString(),
		BookingCode: NewBookingCode(),
		UserID:      userID,
		DoctorID:    schedule.DoctorID,
		DoctorName:  schedule.DoctorName,
		ScheduleID:  schedule.ID,
		TimeSlotID:  timeSlotID,
		Date:        schedule.Date,
		Time:        schedule.Slots[slotIndex].Start,
		Status:      "confirmed",
		CreatedAt:   b.clock().UTC(),
	}
	item, err := attributevalue.MarshalMap(appt)
	if err != nil {
		return Appointment{}, fmt.Errorf("scheduling: marshal appointment: %w", err)
	}

	_, err = b.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: aws.String(b.schedulesTable),
					Key: map[string]types.AttributeValue{
						"scheduleId": &types.AttributeValueMemberS{Value: scheduleID},
					},
					UpdateExpression:    aws.String(fmt.Sprintf("SET slots[%d].isBooked = :true", slotIndex)),
					ConditionExpression: aws.String(fmt.Sprintf("attribute_exists(scheduleId) AND slots[%d].isBooked = :false", slotIndex)),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":true":  &types.AttributeValueMemberBOOL{Value: true},
						":false": &types.AttributeValueMemberBOOL{Value: false},
					},
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(b.appointmentsTable),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(appointmentId)"),
				},
			},
		},
	})
	if err != nil {
		if isConditionalCancellation(err) {
			return Appointment{}, ErrSlotTaken
		}
		return Appointment{}, fmt.Errorf("scheduling: booking transaction: %w", err)
	}
	return appt, nil
}

// Cancel flips the appointment to cancelled and frees the slot in one
// transaction.
func (b *DynamoBooker) Cancel(ctx context.Context, userID, bookingCode string) (Appointment, error) {
	appt, err := b.findByBookingCode(ctx, userID, bookingCode)
	if err != nil {
		return Appointment{}, err
	}
	if appt.Status == "cancelled" {
		return appt, nil
	}

	schedule, err := b.GetSchedule(ctx, appt.ScheduleID)
	if err != nil && !errors.Is(err, ErrScheduleNotFound) {
		return Appointment{}, err
	}
	slotIndex := -1
	for i, slot := range schedule.Slots {
		if slot.ID == appt.TimeSlotID {
			slotIndex = i
			break
		}
	}

	items := []types.TransactWriteItem{
		{
			Update: &types.Update{
				TableName: aws.String(b.appointmentsTable),
				Key: map[string]types.AttributeValue{
					"appointmentId": &types.AttributeValueMemberS{Value: appt.ID},
				},
				UpdateExpression:    aws.String("SET #s = :cancelled"),
				ConditionExpression: aws.String("userId = :user"),
				ExpressionAttributeNames: map[string]string{
					"#s": "status",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":cancelled": &types.AttributeValueMemberS{Value: "cancelled"},
					":user":      &types.AttributeValueMemberS{Value: userID},
				},
			},
		},
	}
	if slotIndex >= 0 {
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName: aws.String(b.schedulesTable),
				Key: map[string]types.AttributeValue{
					"scheduleId": &types.AttributeValueMemberS{Value: appt.ScheduleID},
				},
				UpdateExpression: aws.String(fmt.Sprintf("SET slots[%d].isBooked = :false", slotIndex)),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":false": &types.AttributeValueMemberBOOL{Value: false},
				},
			},
		})
	}

	if _, err := b.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		if isConditionalCancellation(err) {
			return Appointment{}, ErrAppointmentNotFound
		}
		return Appointment{}, fmt.Errorf("scheduling: cancel transaction: %w", err)
	}
	appt.Status = "cancelled"
	return appt, nil
}

// ListAppointments queries the user's appointments via the userId index.
func (b *DynamoBooker) ListAppointments(ctx context.Context, userID string) ([]Appointment, error) {
	out, err := b.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(b.appointmentsTable),
		IndexName:              aws.String("user-index"),
		KeyConditionExpression: aws.String("userId = :user"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":user": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling: query appointments: %w", err)
	}

	appointments := make([]Appointment, 0, len(out.Items))
	for _, item := range out.Items {
		var appt Appointment
		if err := attributevalue.UnmarshalMap(item, &appt); err != nil {
			b.logger.Warn("skipping undecodable appointment", "error", err)
			continue
		}
		appointments = append(appointments, appt)
	}
	return appointments, nil
}

func (b *DynamoBooker) findByBookingCode(ctx context.Context, userID, bookingCode string) (Appointment, error) {
	appointments, err := b.ListAppointments(ctx, userID)
	if err != nil {
		return Appointment{}, err
	}
	for _, appt := range appointments {
		if appt.BookingCode == bookingCode {
			return appt, nil
		}
	}
	return Appointment{}, ErrAppointmentNotFound
}

// isConditionalCancellation reports whether a transaction failed because a
// condition expression did not hold, i.e. another writer got there first.
func isConditionalCancellation(err error) bool {
	var cancelled *types.TransactionCanceledException
	if !errors.As(err, &cancelled) {
		return false
	}
	for _, reason := range cancelled.CancellationReasons {
		if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}
