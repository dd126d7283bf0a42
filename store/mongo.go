package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reservio/db"
	"reservio/models"
)

// Mongo implements Store on top of the shared collections in reservio/db.
type Mongo struct {
	rooms        *mongo.Collection
	reservations *mongo.Collection
}

func NewMongo() *Mongo {
	return &Mongo{
		rooms:        db.RoomsCollection,
		reservations: db.ReservationsCollection,
	}
}

const queryTimeout = 5 * time.Second

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

// ---------- Rooms ----------

func (m *Mongo) InsertRoom(ctx context.Context, room models.Room) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := m.rooms.InsertOne(ctx, room)
	return err
}

func (m *Mongo) FindRoom(ctx context.Context, id string) (*models.Room, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var room models.Room
	err := m.rooms.FindOne(ctx, bson.M{"id": id}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (m *Mongo) FindRoomByName(ctx context.Context, name string) (*models.Room, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var room models.Room
	err := m.rooms.FindOne(ctx, bson.M{"name": name}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (m *Mongo) ListRooms(ctx context.Context) ([]models.Room, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	cur, err := m.rooms.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"name": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var rooms []models.Room
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (m *Mongo) UpdateRoom(ctx context.Context, room models.Room) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := m.rooms.UpdateOne(ctx, bson.M{"id": room.ID}, bson.M{"$set": room})
	return err
}

func (m *Mongo) DeleteRoom(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := m.rooms.DeleteOne(ctx, bson.M{"id": id})
	return err
}

// ---------- Reservations ----------

func (m *Mongo) InsertReservation(ctx context.Context, res models.Reservation) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := m.reservations.InsertOne(ctx, res)
	return err
}

func (m *Mongo) FindReservation(ctx context.Context, id string) (*models.Reservation, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var res models.Reservation
	err := m.reservations.FindOne(ctx, bson.M{"id": id}).Decode(&res)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (m *Mongo) ListReservations(ctx context.Context, roomID, status string) ([]models.Reservation, error) {
	filter := bson.M{}
	if roomID != "" {
		filter["roomId"] = roomID
	}
	if status != "" {
		filter["status"] = status
	}
	return m.findReservations(ctx, filter)
}

func (m *Mongo) FindReservationsByRoom(ctx context.Context, roomID string, rng TimeRange) ([]models.Reservation, error) {
	filter := bson.M{"roomId": roomID}
	if !rng.From.IsZero() {
		// window still in progress counts: endsAt past the lower bound
		filter["endsAt"] = bson.M{"$gt": rng.From}
	}
	if !rng.To.IsZero() {
		filter["startsAt"] = bson.M{"$lt": rng.To}
	}
	return m.findReservations(ctx, filter)
}

func (m *Mongo) FindOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeID string) ([]models.Reservation, error) {
	filter := bson.M{
		"roomId":   roomID,
		"status":   bson.M{"$in": []string{models.StatusConfirmed, models.StatusOccupied}},
		"startsAt": bson.M{"$lt": end},
		"endsAt":   bson.M{"$gt": start},
	}
	if excludeID != "" {
		filter["id"] = bson.M{"$ne": excludeID}
	}
	return m.findReservations(ctx, filter)
}

func (m *Mongo) findReservations(ctx context.Context, filter bson.M) ([]models.Reservation, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	cur, err := m.reservations.Find(ctx, filter, options.Find().SetSort(bson.M{"startsAt": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Reservation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) UpdateReservation(ctx context.Context, res models.Reservation) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := m.reservations.UpdateOne(ctx, bson.M{"id": res.ID}, bson.M{"$set": res})
	return err
}

func (m *Mongo) UpdateReservationStatus(ctx context.Context, id, status string) (*models.Reservation, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res := m.reservations.FindOneAndUpdate(ctx,
		bson.M{"id": id},
		bson.M{"$set": bson.M{"status": status}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var updated models.Reservation
	if err := res.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &updated, nil
}

func (m *Mongo) DeleteReservation(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := m.reservations.DeleteOne(ctx, bson.M{"id": id})
	return err
}

func (m *Mongo) DeleteReservationsByRoom(ctx context.Context, roomID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	_, err := m.reservations.DeleteMany(ctx, bson.M{"roomId": roomID})
	return err
}

func (m *Mongo) ReleaseNoShows(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res, err := m.reservations.UpdateMany(ctx,
		bson.M{"status": models.StatusConfirmed, "endsAt": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"status": models.StatusCancelled}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (m *Mongo) FindConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	return m.findReservations(ctx, bson.M{
		"status":   models.StatusConfirmed,
		"startsAt": bson.M{"$gte": from, "$lte": to},
	})
}

func (m *Mongo) HasActiveReservation(ctx context.Context, roomID string, now time.Time) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	count, err := m.reservations.CountDocuments(ctx, bson.M{
		"roomId":   roomID,
		"status":   bson.M{"$in": []string{models.StatusConfirmed, models.StatusOccupied}},
		"startsAt": bson.M{"$lte": now},
		"endsAt":   bson.M{"$gt": now},
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
