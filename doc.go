// Package reflar saves and restores graphs of Go values through reflection.
//
// A graph is written to a document tree (see package document) plus an
// extra byte buffer for bulk binary data. Objects reached through pointers
// get an id the first time they are seen; every later pointer to the same
// object is written as a reference to that id, so shared objects, cycles and
// self references come back as the same shape. Values held in interfaces
// record the registered name of their dynamic type so that the right
// concrete type is rebuilt on load.
//
// The document has the form
//
//	%main_id: 0
//	%data:
//	  "0":
//	    %type: SharedPtrTest
//	    SharedPtrTest::SharedPtr: {"&": 1}
//	    SharedPtrTest::WeakPtr: {"&": 1}
//	  "1":
//	    %type: BaseData
//	    BaseData::data: [0, 182.376, 364.752]
//
// Struct fields are keyed by the owning type's registered name and the field
// name, so embedded structs never collide with the types that embed them.
//
// Field tags use the "reflar" key:
//
//	Name  string  `reflar:"name"`           // persisted as Owner::name
//	Cache []int   `reflar:"-"`              // not persisted
//	Verts []float32 `reflar:"verts,extra"`  // packed into the extra buffer
//	Note  string  `reflar:",optional"`      // may be missing on load
package reflar
