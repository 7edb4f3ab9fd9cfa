package validators

import "go.mongodb.org/mongo-driver/bson"

var ConversationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"trip_id",
			"participants",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"trip_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"participants": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"user_id", "joined_at"},
					"properties": bson.M{
						"user_id": bson.M{
							"bsonType":  "string",
							"minLength": 1,
							"maxLength": 64,
						},
						"joined_at": bson.M{
							"bsonType": "date",
						},
						"left_at": bson.M{
							"bsonType": []string{"date", "null"},
						},
					},
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
