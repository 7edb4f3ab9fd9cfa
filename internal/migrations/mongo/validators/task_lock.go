package validators

import "go.mongodb.org/mongo-driver/bson"

var TaskLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"last_execution",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"last_execution": bson.M{
				"bsonType": []string{"long", "int"},
				"minimum":  0,
			},
		},
	},
}
