// Package manifest loads declarative application manifests written in CUE and
// builds them into construct trees.
//
// A manifest declares an app block, one or more stacks, and per-stack
// resources:
//
//	app: name: "orders"
//
//	stacks: Api: {
//	    description: "order intake"
//	    resources: {
//	        Queue: {
//	            type: "AWS::SQS::Queue"
//	            properties: QueueName: "orders"
//	        }
//	        Sub: {
//	            type: "AWS::SNS::Subscription"
//	            properties: Endpoint: {"$getAtt": ["Queue", "Arn"]}
//	        }
//	    }
//	}
//
// Property values may use three reference forms, all of which become tokens
// that resolve at synthesis time:
//
//   - {"$ref": id} - a Ref intrinsic over the target's logical identifier
//   - {"$getAtt": [id, attr]} - an Fn::GetAtt intrinsic
//   - {"$expr": expression} - a Starlark expression evaluated against the
//     completed identifier table (`ids`), manifest variables (`vars`), and the
//     stack name (`stack`)
//
// Loading never panics on malformed input: parse and decode problems are
// collected into Manifest.Errors, and Build refuses manifests that carry any.
package manifest
