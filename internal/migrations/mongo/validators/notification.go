package validators

import "go.mongodb.org/mongo-driver/bson"

var NotificationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"trip_id",
			"type",
			"dedup_key",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"trip_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"DRAFT_REMINDER",
					"UPCOMING_TRIP",
				},
			},

			"title": bson.M{
				"bsonType":  "string",
				"maxLength": 200,
			},

			"body": bson.M{
				"bsonType":  "string",
				"maxLength": 2000,
			},

			"dedup_key": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"read": bson.M{
				"bsonType": "bool",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
